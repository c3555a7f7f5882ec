// feedgen emits a synthetic operation stream for one or more symbols:
// limit orders walking around a per-symbol midpoint, mixed with
// cancels and amends against orders it previously created.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type opLine struct {
	TypeOp     string `json:"type_op"`
	OrderID    string `json:"order_id"`
	AccountID  string `json:"account_id,omitempty"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side,omitempty"`
	OrderType  string `json:"order_type,omitempty"`
	LimitPrice string `json:"limit_price,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
}

func main() {
	var (
		n           = flag.Int("n", 10000, "number of operations to emit")
		symbols     = flag.String("symbol", "BTC/USDC", "comma-separated symbols")
		seed        = flag.Int64("seed", 42, "PRNG seed")
		cancelRatio = flag.Float64("cancel-ratio", 0.15, "fraction of operations that cancel a live order")
		amendRatio  = flag.Float64("amend-ratio", 0.10, "fraction of operations that amend a live order")
	)
	flag.Parse()

	if err := generate(os.Stdout, *n, strings.Split(*symbols, ","), *seed, *cancelRatio, *amendRatio); err != nil {
		fmt.Fprintln(os.Stderr, "feedgen:", err)
		os.Exit(1)
	}
}

func generate(out *os.File, n int, symbols []string, seed int64, cancelRatio, amendRatio float64) error {
	rng := rand.New(rand.NewSource(seed))
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)

	// Orders this generator believes are still live, per symbol. The
	// book may have filled them already; stale cancels simply come
	// back as Rejected, which is realistic traffic.
	live := make(map[string][]opLine, len(symbols))
	accounts := makeAccounts(rng, 8)

	for i := 0; i < n; i++ {
		symbol := symbols[rng.Intn(len(symbols))]
		r := rng.Float64()

		var line opLine
		switch {
		case r < cancelRatio && len(live[symbol]) > 0:
			victim := pick(rng, live, symbol)
			line = opLine{TypeOp: "CANCEL", OrderID: victim.OrderID, Symbol: symbol}

		case r < cancelRatio+amendRatio && len(live[symbol]) > 0:
			target := pickKeep(rng, live[symbol])
			line = target
			line.TypeOp = "AMEND"
			line.LimitPrice = jitter(rng, target.LimitPrice)
			line.Quantity = randomQty(rng)

		default:
			line = randomCreate(rng, symbol, accounts)
			live[symbol] = append(live[symbol], line)
		}

		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return w.Flush()
}

func randomCreate(rng *rand.Rand, symbol string, accounts []string) opLine {
	side := "BUY"
	if rng.Intn(2) == 1 {
		side = "SELL"
	}
	otype := "LIMIT"
	switch v := rng.Float64(); {
	case v < 0.05:
		otype = "MARKET"
	case v < 0.10:
		otype = "IOC"
	case v < 0.13:
		otype = "FOK"
	case v < 0.16:
		otype = "POST_ONLY"
	}
	return opLine{
		TypeOp:     "CREATE",
		OrderID:    uuid.NewString(),
		AccountID:  accounts[rng.Intn(len(accounts))],
		Symbol:     symbol,
		Side:       side,
		OrderType:  otype,
		LimitPrice: randomPrice(rng),
		Quantity:   randomQty(rng),
	}
}

func randomPrice(rng *rand.Rand) string {
	// Midpoint 50000 with a +-2% band, two decimal places.
	mid := 50000.0
	p := mid * (0.98 + 0.04*rng.Float64())
	return decimal.NewFromFloat(p).Round(2).String()
}

func randomQty(rng *rand.Rand) string {
	q := 0.001 + rng.Float64()*2
	return decimal.NewFromFloat(q).Round(5).String()
}

func jitter(rng *rand.Rand, price string) string {
	d, err := decimal.NewFromString(price)
	if err != nil || d.IsZero() {
		return randomPrice(rng)
	}
	factor := decimal.NewFromFloat(0.995 + 0.01*rng.Float64())
	return d.Mul(factor).Round(2).String()
}

func makeAccounts(rng *rand.Rand, count int) []string {
	accounts := make([]string, count)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("acct-%04d", rng.Intn(10000))
	}
	return accounts
}

// pick removes and returns a random live order for symbol.
func pick(rng *rand.Rand, live map[string][]opLine, symbol string) opLine {
	orders := live[symbol]
	i := rng.Intn(len(orders))
	victim := orders[i]
	orders[i] = orders[len(orders)-1]
	live[symbol] = orders[:len(orders)-1]
	return victim
}

// pickKeep returns a random live order without removing it.
func pickKeep(rng *rand.Rand, orders []opLine) opLine {
	return orders[rng.Intn(len(orders))]
}
