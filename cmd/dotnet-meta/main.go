package main

import "github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cli"

func main() {
	cli.Execute()
}
