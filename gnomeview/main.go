// Command gnomeview serves model runs and plays them back.
package main

import "github.com/sarchlab/gnomeview/gnomeview/cmd"

func main() {
	cmd.Execute()
}
