// Command authgw runs the tenant authentication gateway demo server and its
// operational tools.
package main

func main() {
	Execute()
}
