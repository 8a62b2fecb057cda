package display

import (
	"fmt"
	"os"
)

// PrintBanner prints the ASCII art banner, in bold magenta unless
// colors are disabled.
func PrintBanner(noColor bool) {
	if !noColor {
		fmt.Fprint(os.Stdout, "\033[1;95m")
	}
	fmt.Fprint(os.Stdout, `__     __        _ __  __
\ \   / /__ _ __(_)  \/  |_   ___  __
 \ \ / / _ \ '__| | |\/| | | | \ \/ /
  \ V /  __/ |  | | |  | | |_| |>  <
   \_/ \___|_|  |_|_|  |_|\__,_/_/\_\
`)
	if !noColor {
		fmt.Fprintln(os.Stdout, "\033[0m")
	}
}
