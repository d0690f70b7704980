/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package devtransform

import (
	"fmt"
	"strings"
)

// emptySourceMapDataURL is a base64-encoded, empty sourcemap v3 payload
// appended to CSS modules so devtools doesn't try (and fail) to fetch one.
const emptySourceMapDataURL = "data:application/json;base64,eyJ2ZXJzaW9uIjozLCJzb3VyY2VzIjpbXSwibmFtZXMiOltdLCJtYXBwaW5ncyI6IiJ9"

// CSS wraps raw stylesheet source in a constructable-stylesheet ES module,
// the shape Lit and other CSS-in-JS consumers expect from a ".css" import.
func CSS(source []byte, path string) string {
	literal := stringToTemplateLiteral(string(source))
	return fmt.Sprintf(`// [served] %s
const sheet = new CSSStyleSheet();
sheet.replaceSync(%s);
export default sheet;
//# sourceMappingURL=%s
`, path, "`"+literal+"`", emptySourceMapDataURL)
}

// stringToTemplateLiteral escapes the characters that would otherwise break
// out of a template literal: backslashes, backticks, and ${ substitutions.
func stringToTemplateLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	s = strings.ReplaceAll(s, "${", "\\${")
	return s
}
