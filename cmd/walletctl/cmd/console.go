package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vitwit/walletsession/types"
)

// consoleNotifier prints notifications as single lines
type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *consoleNotifier) Notify(n types.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Level)), n.Title)
	if n.Message != "" {
		line += ": " + n.Message
	}
	if n.TxHash != "" {
		line += " (" + n.TxHash + ")"
	}
	fmt.Fprintln(c.out, line)
}

// promptApprover asks on the terminal before granting access or signing
type promptApprover struct {
	in  io.Reader
	out io.Writer

	once   sync.Once
	reader *bufio.Reader
}

func (p *promptApprover) ApproveConnection(ctx context.Context, address string) bool {
	return p.confirm(ctx, fmt.Sprintf("Allow access to account %s?", address))
}

func (p *promptApprover) ApproveTransaction(ctx context.Context, tx types.SendTransactionArgs) bool {
	return p.confirm(ctx, fmt.Sprintf("Send %s wei from %s to %s?", hexToDecimal(tx.Value), tx.From, tx.To))
}

func (p *promptApprover) confirm(ctx context.Context, question string) bool {
	p.once.Do(func() {
		p.reader = bufio.NewReader(p.in)
	})

	fmt.Fprintf(p.out, "%s [y/N] ", question)

	answer := make(chan string, 1)
	go func() {
		line, _ := p.reader.ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return false
	case a := <-answer:
		return a == "y" || a == "yes"
	}
}

func hexToDecimal(v string) string {
	n, err := hexutil.DecodeBig(v)
	if err != nil {
		return v
	}
	return n.String()
}
