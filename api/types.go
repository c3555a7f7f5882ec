package api

import "fenrir/domain/book"

type summaryResponse struct {
	Symbol    string `json:"symbol"`
	BestBid   string `json:"best_bid,omitempty"`
	BestAsk   string `json:"best_ask,omitempty"`
	Spread    string `json:"spread,omitempty"`
	BidOrders int    `json:"bid_orders"`
	AskOrders int    `json:"ask_orders"`
	BidQty    string `json:"bid_qty"`
	AskQty    string `json:"ask_qty"`
	LastSeq   uint64 `json:"last_seq"`
}

type levelResponse struct {
	Price  string `json:"price"`
	Qty    string `json:"qty"`
	Orders int    `json:"orders"`
}

type depthResponse struct {
	Symbol string          `json:"symbol"`
	Bids   []levelResponse `json:"bids"`
	Asks   []levelResponse `json:"asks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toSummaryResponse(s book.Summary) summaryResponse {
	r := summaryResponse{
		Symbol:    s.Symbol,
		BidOrders: s.BidOrders,
		AskOrders: s.AskOrders,
		BidQty:    s.BidQty.String(),
		AskQty:    s.AskQty.String(),
		LastSeq:   s.LastSeq,
	}
	if s.HasBid {
		r.BestBid = s.BestBid.String()
	}
	if s.HasAsk {
		r.BestAsk = s.BestAsk.String()
	}
	if s.HasBid && s.HasAsk {
		r.Spread = s.Spread.String()
	}
	return r
}

func toLevelResponses(levels []book.LevelInfo) []levelResponse {
	out := make([]levelResponse, len(levels))
	for i, lvl := range levels {
		out[i] = levelResponse{
			Price:  lvl.Price.String(),
			Qty:    lvl.Qty.String(),
			Orders: lvl.Orders,
		}
	}
	return out
}
