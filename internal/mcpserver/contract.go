package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/kwcat/internal/aicat"
)

const iconsResourceURI = "kwcat://category-icons"

// CategoryIconsDoc lists the icons a category may carry. Model output using
// any other icon is rewritten to the default.
func CategoryIconsDoc() string {
	var b strings.Builder
	b.WriteString("# Category Icons\n\n")
	b.WriteString("Every category returned by kwcat carries one of these icon names.\n\n")
	for _, icon := range aicat.Icons {
		fmt.Fprintf(&b, "- `%s`\n", icon)
	}
	fmt.Fprintf(&b, "\nUnknown icons are replaced with `%s`.\n", aicat.DefaultIcon)
	return b.String()
}
