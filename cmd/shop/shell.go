package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/widget"
)

const help = `commands:
  add <id> <name> <price>   add one unit of a product
  inc <index>               increase a line quantity
  dec <index>               decrease a line quantity
  rm <index>                remove a line
  open | close              show or hide the cart
  pay <source>              click a checkout button (paypal, paylater, card)
  show                      print the page
  clear                     empty the cart
  quit`

type shell struct {
	w      *widget.Widget
	out    io.Writer
	alerts int
}

// runShell reads commands from in until quit, EOF or ctx ends.
func runShell(ctx context.Context, w *widget.Widget, in io.Reader, out io.Writer) error {
	sh := &shell{w: w, out: out}
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, help)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := sh.exec(ctx, fields); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
		sh.flushAlerts()
	}
}

func (sh *shell) exec(ctx context.Context, fields []string) error {
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "add":
		if len(args) < 3 {
			return fmt.Errorf("usage: add <id> <name> <price>")
		}
		price, err := money.Parse(args[len(args)-1])
		if err != nil {
			return err
		}
		name := strings.Join(args[1:len(args)-1], " ")
		return sh.w.AddItem(args[0], name, price, 1)
	case "inc", "dec", "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <index>", cmd)
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad index %q", args[0])
		}
		switch cmd {
		case "inc":
			return sh.w.ChangeQuantity(i, 1)
		case "dec":
			return sh.w.ChangeQuantity(i, -1)
		default:
			return sh.w.RemoveItem(i)
		}
	case "open":
		sh.w.Open()
		sh.w.Wait()
		fmt.Fprintln(sh.out, "checkout:", sh.w.Checkout().State)
	case "close":
		sh.w.Close()
		sh.w.Wait()
	case "pay":
		if len(args) != 1 {
			return fmt.Errorf("usage: pay <source>")
		}
		return sh.w.Pay(ctx, checkout.FundingSource(args[0]))
	case "show":
		if err := sh.w.Document().Render(sh.out); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "items=%d total=%s checkout=%s\n", sh.w.Count(), sh.w.Total().Dollars(), sh.w.Checkout().State)
	case "clear":
		return sh.w.Clear()
	case "help":
		fmt.Fprintln(sh.out, help)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (sh *shell) flushAlerts() {
	alerts := sh.w.Alerts()
	for _, a := range alerts[sh.alerts:] {
		fmt.Fprintln(sh.out, "alert:", a)
	}
	sh.alerts = len(alerts)
}
