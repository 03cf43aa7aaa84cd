// workoutscan - handwritten workout log to JSON via a hosted vision model
package main

import "github.com/ashureev/workoutscan/internal/cli"

func main() {
	cli.Execute()
}
