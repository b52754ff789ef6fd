// Shelfwatch - e-commerce page change detection and notification engine.
// Watch. Confirm. Notify.
package main

func main() {
	Execute()
}
