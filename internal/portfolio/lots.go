package portfolio

import "github.com/shopspring/decimal"

// Lot is one FIFO inventory entry. Shares is signed: positive lots are
// long, negative lots are short. A single asset's lot queue always holds
// one sign, because a fill closes opposing lots before opening new ones.
type Lot struct {
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

// inventory is the per-asset lot book.
type inventory map[string][]Lot

// applyBuy closes short lots FIFO, realizing (open − buy) × closed per
// lot, then opens a long lot with whatever size remains. It returns the
// realized PnL of the closes.
func (inv inventory) applyBuy(assetID string, price, size decimal.Decimal) decimal.Decimal {
	realized := decimal.Zero
	remaining := size
	lots := inv[assetID]

	for len(lots) > 0 && remaining.IsPositive() && lots[0].Shares.IsNegative() {
		short := lots[0].Shares.Neg()
		closed := decimal.Min(remaining, short)

		realized = realized.Add(lots[0].Price.Sub(price).Mul(closed))
		remaining = remaining.Sub(closed)

		if closed.Equal(short) {
			lots = lots[1:]
		} else {
			lots[0].Shares = lots[0].Shares.Add(closed)
		}
	}

	if remaining.IsPositive() {
		lots = append(lots, Lot{Shares: remaining, Price: price})
	}

	inv.set(assetID, lots)
	return realized
}

// applySell closes long lots FIFO, realizing (sell − open) × closed per
// lot, then opens a short lot with whatever size remains.
func (inv inventory) applySell(assetID string, price, size decimal.Decimal) decimal.Decimal {
	realized := decimal.Zero
	remaining := size
	lots := inv[assetID]

	for len(lots) > 0 && remaining.IsPositive() && lots[0].Shares.IsPositive() {
		closed := decimal.Min(remaining, lots[0].Shares)

		realized = realized.Add(price.Sub(lots[0].Price).Mul(closed))
		remaining = remaining.Sub(closed)

		if closed.Equal(lots[0].Shares) {
			lots = lots[1:]
		} else {
			lots[0].Shares = lots[0].Shares.Sub(closed)
		}
	}

	if remaining.IsPositive() {
		lots = append(lots, Lot{Shares: remaining.Neg(), Price: price})
	}

	inv.set(assetID, lots)
	return realized
}

func (inv inventory) set(assetID string, lots []Lot) {
	if len(lots) == 0 {
		delete(inv, assetID)
		return
	}
	inv[assetID] = lots
}

// netShares sums the signed lot sizes for one asset.
func (inv inventory) netShares(assetID string) decimal.Decimal {
	net := decimal.Zero
	for _, lot := range inv[assetID] {
		net = net.Add(lot.Shares)
	}
	return net
}

// positions returns the non-flat net position per asset.
func (inv inventory) positions() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(inv))
	for assetID := range inv {
		net := inv.netShares(assetID)
		if !net.IsZero() {
			out[assetID] = net
		}
	}
	return out
}

// costBasis sums shares × open price across every open lot, signed.
func (inv inventory) costBasis() decimal.Decimal {
	basis := decimal.Zero
	for _, lots := range inv {
		for _, lot := range lots {
			basis = basis.Add(lot.Shares.Mul(lot.Price))
		}
	}
	return basis
}
