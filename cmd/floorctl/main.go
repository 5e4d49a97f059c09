// Command floorctl administers the floor inventory: schema, seeding,
// reporting, reconciliation and operator tokens.
package main

func main() {
	execute()
}
