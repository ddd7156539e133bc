// Command backoffice runs the operator dashboard and its media tooling.
package main

func main() {
	Execute()
}
