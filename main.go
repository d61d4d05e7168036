package main

import (
	"fmt"
	"os"

	"aquere/libros-iva/cmd/clients"
	"aquere/libros-iva/cmd/detect"
	"aquere/libros-iva/cmd/login"
	"aquere/libros-iva/cmd/merge"
	"aquere/libros-iva/cmd/preview"
	"aquere/libros-iva/cmd/root"
	"aquere/libros-iva/cmd/serve"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(detect.Cmd)
	root.Cmd.AddCommand(preview.Cmd)
	root.Cmd.AddCommand(merge.Cmd)
	root.Cmd.AddCommand(clients.Cmd)
	root.Cmd.AddCommand(serve.Cmd)
	root.Cmd.AddCommand(login.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
