// SPDX-License-Identifier: MPL-2.0

// Command envmatrix runs commands across a matrix of isolated environments.
package main

import cmd "github.com/envmatrix/envmatrix/cmd/envmatrix"

func main() {
	cmd.Execute()
}
