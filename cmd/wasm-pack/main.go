// Command wasm-pack generates Go, Python and JavaScript packages for
// WebAssembly modules described by WIT interfaces.
package main

func main() {
	Execute()
}
