// Command heavysql translates questions into SQL and reviews the result with
// a panel of role-specialized model agents.
package main

func main() {
	Execute()
}
