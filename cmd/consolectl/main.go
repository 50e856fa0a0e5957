// consolectl — клиент командной строки консоли администрирования.
package main

import "github.com/bigkaa/goartstore/console-module/internal/cli"

func main() {
	cli.Execute()
}
