package main

import "github.com/Taichi-iskw/yt-rank/cmd"

func main() {
	cmd.Execute()
}
