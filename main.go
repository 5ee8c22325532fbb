package main

import "github.com/surge-downloader/m3u8dl/cmd"

func main() {
	cmd.Execute()
}
