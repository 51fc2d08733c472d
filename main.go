// The main package for the sermons executable.
package main

import "github.com/JakeFAU/sermon-harvester/cmd"

func main() {
	cmd.Execute()
}
