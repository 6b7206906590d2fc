package main

func main() {
	ExecuteCLI()
}
