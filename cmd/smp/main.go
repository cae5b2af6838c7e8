// Command smp builds, reads, and validates Styled Map Packages.
package main

func main() {
	Execute()
}
