package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/drake/vty/ui"
)

func main() {
	connect := flag.String("connect", "", "feed bytes from a TCP connection instead of the input line")
	flag.Parse()

	var source chan []byte
	if *connect != "" {
		conn, err := net.Dial("tcp", *connect)
		if err != nil {
			fmt.Fprintln(os.Stderr, "connect:", err)
			os.Exit(1)
		}
		defer conn.Close()

		source = make(chan []byte, 16)
		go func() {
			defer close(source)
			buf := make([]byte, 4096)
			for {
				n, err := conn.Read(buf)
				if n > 0 {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					source <- chunk
				}
				if err != nil {
					return
				}
			}
		}()
	}

	p := tea.NewProgram(ui.NewInspector(source), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "ui:", err)
		os.Exit(1)
	}
}
