// Command tbd converts Mach-O dynamic libraries, fat Mach-O containers,
// and images extracted from a dyld shared-cache into tbd stub files.
package main

func main() {
	Execute()
}
