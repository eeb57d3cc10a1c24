package aicat

// Icons is the vocabulary the model may pick category icons from.
var Icons = []string{
	"tag", "help-circle", "scale", "award", "folder",
	"shopping-cart", "monitor", "smartphone", "headphones", "gamepad",
	"home", "heart", "book", "map-pin", "truck",
	"wrench", "star", "zap", "camera", "briefcase",
}

// DefaultIcon replaces icons outside the vocabulary.
const DefaultIcon = "folder"

var iconSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Icons))
	for _, i := range Icons {
		m[i] = struct{}{}
	}
	return m
}()

func validIcon(icon string) bool {
	_, ok := iconSet[icon]
	return ok
}
