package cmd

import (
	"fmt"
	"io"
)

const banner = `
               _      _           _     
   ___ ___ _ _| |_ __| |__ _ _ __| |_   
  / __/ -_) '_|  _/ _' / _' (_-< ' \  
  \___\___|_|  \__\__,_\__,_/__/_||_|  
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Certificate Dashboard - Version %s\x1b[0m\n\n", Version)
}
