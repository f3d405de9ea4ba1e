package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/idmestash/internal/client"
)

const (
	displayCounter = 100
	workers        = 2
)

// round one item going through set, verify, clean, verify
type round struct {
	item    string
	value   string
	cleaned bool
}

func (r round) String() string {
	return fmt.Sprintf("item=%s value=%q cleaned=%v", r.item, r.value, r.cleaned)
}

// Checker an item is owned by at most one round at a time, so every verify
// knows the value it must read back.
type Checker struct {
	toDisplay chan string

	free       chan string
	toGet      chan round
	toClean    chan round
	toGetAfter chan round

	rounds   atomic.Int64
	failures atomic.Int64

	wg sync.WaitGroup

	client *client.GRPCClient
	sugar  *zap.SugaredLogger
}

func NewChecker(addr, unlock string, items []string, logger *zap.Logger) (*Checker, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items to check")
	}
	c, err := client.NewGRPClient(addr, unlock)
	if err != nil {
		return nil, err
	}

	free := make(chan string, len(items))
	for _, it := range items {
		free <- it
	}
	return &Checker{
		client:     c,
		sugar:      logger.Sugar(),
		toDisplay:  make(chan string),
		free:       free,
		toGet:      make(chan round),
		toClean:    make(chan round),
		toGetAfter: make(chan round),
	}, nil
}

func (c *Checker) Go(ctx context.Context) {
	c.wg.Add(1 + 4*workers)

	go c.display(ctx)
	for i := 0; i < workers; i++ {
		go c.set(ctx)
		go c.get(ctx)
		go c.clean(ctx)
		go c.getAfter(ctx)
	}
}

func (c *Checker) Wait() error {
	c.wg.Wait()
	return c.client.Close()
}

func (c *Checker) Stats() (int64, int64) {
	return c.rounds.Load(), c.failures.Load()
}

func (c *Checker) display(ctx context.Context) {
	defer c.wg.Done()
	c.sugar.Infow("display start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("display done")
			return
		case s := <-c.toDisplay:
			if _, err := fmt.Fprint(os.Stdout, s); err != nil {
				c.sugar.Errorw("fprint stdout", "error", err)
			}
		}
	}
}

func (c *Checker) tick(ctx context.Context, count *int, mark string) {
	*count++
	if *count < displayCounter {
		return
	}
	*count = 0
	select {
	case c.toDisplay <- mark:
	case <-ctx.Done():
	}
}

// exec runs a line and reports whether it succeeded
func (c *Checker) exec(ctx context.Context, line string) ([]string, bool) {
	code, lines, err := c.client.Exec(ctx, line)
	if err != nil {
		if ctx.Err() == nil {
			c.sugar.Errorw("exec", "line", line, "error", err)
			c.failures.Add(1)
		}
		return nil, false
	}
	if code != 0 {
		c.sugar.Errorw("exec", "line", line, "code", code)
		c.failures.Add(1)
		return nil, false
	}
	return lines, true
}

func (c *Checker) release(ctx context.Context, item string) {
	select {
	case c.free <- item:
	case <-ctx.Done():
	}
}

func (c *Checker) set(ctx context.Context) {
	defer c.wg.Done()

	count := 0
	c.sugar.Infow("set start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("set done")
			return
		case item := <-c.free:
			r := round{item: item, value: strconv.Itoa(rand.Intn(1000))}
			if _, ok := c.exec(ctx, fmt.Sprintf("idme -- %s %s", r.item, r.value)); !ok {
				c.release(ctx, item)
				continue
			}
			c.sugar.Debugw("set ok", "round", r)
			c.tick(ctx, &count, "S")

			select {
			case c.toGet <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Checker) get(ctx context.Context) {
	defer c.wg.Done()

	count := 0
	c.sugar.Infow("get start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("get done")
			return
		case r := <-c.toGet:
			c.compare(ctx, r)
			c.tick(ctx, &count, "G")

			if rand.Intn(2) == 0 {
				c.rounds.Add(1)
				c.release(ctx, r.item)
				continue
			}
			select {
			case c.toClean <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Checker) clean(ctx context.Context) {
	defer c.wg.Done()

	count := 0
	c.sugar.Infow("clean start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("clean done")
			return
		case r := <-c.toClean:
			if _, ok := c.exec(ctx, fmt.Sprintf("idme %s clean", r.item)); !ok {
				c.release(ctx, r.item)
				continue
			}
			r.cleaned = true
			r.value = ""
			c.tick(ctx, &count, "C")

			select {
			case c.toGetAfter <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Checker) getAfter(ctx context.Context) {
	defer c.wg.Done()

	count := 0
	c.sugar.Infow("getAfter start")

	for {
		select {
		case <-ctx.Done():
			c.sugar.Infow("getAfter done")
			return
		case r := <-c.toGetAfter:
			c.compare(ctx, r)
			c.rounds.Add(1)
			c.tick(ctx, &count, "A")
			c.release(ctx, r.item)
		}
	}
}

func (c *Checker) compare(ctx context.Context, r round) {
	lines, ok := c.exec(ctx, "idme ? "+r.item)
	if !ok {
		return
	}
	want := r.item + ": " + r.value
	if len(lines) != 1 || lines[0] != want {
		c.sugar.Errorw("not equal", "round", r, "want", want, "got", lines)
		c.failures.Add(1)
	}
}
