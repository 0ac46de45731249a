package main

import "github.com/haotianfei/frigate-exports-backup/cmd"

func main() {
	cmd.Execute()
}
