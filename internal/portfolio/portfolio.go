package portfolio

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"stock_bot/internal/models"
	"stock_bot/pkg/logger"
)

// Сколько держится свежая котировка из стрима: внутри окна цена из снапшота
// брокера (более медленный цикл) не перетирает стримовую.
const priceFreshness = 10 * time.Second

// Порог расхождения времени покупки между кешем и журналом сделок.
const acquiredDrift = 10 * time.Second

// TradeHistory — журнал сделок для восстановления времени входа
// (последний переход qty 0 -> положительное). nil допустим.
type TradeHistory interface {
	LastEntryTime(ctx context.Context, symbol string) (time.Time, bool, error)
}

// Portfolio — зеркало счёта у брокера. Единственный владелец жизненного цикла
// позиций: стратегии читают через аксессоры, qty/avg мутируются только сверкой.
// Вызовы SyncWithBroker сериализует движок; мьютекс защищает читателей
// (telegram /positions, веб-статус) от гонок с обновлением цен.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*models.Position

	cash       float64
	depositD1  float64
	depositD2  float64
	totalAsset float64

	onChange []func(models.PositionChange)

	state           *StateStore
	history         TradeHistory
	checkedBackfill map[string]bool
}

func New(state *StateStore, history TradeHistory) *Portfolio {
	return &Portfolio{
		positions:       make(map[string]*models.Position),
		state:           state,
		history:         history,
		checkedBackfill: make(map[string]bool),
	}
}

// Subscribe — подписка на события изменения позиций (fills).
func (p *Portfolio) Subscribe(fn func(models.PositionChange)) {
	p.onChange = append(p.onChange, fn)
}

// SyncWithBroker — сверка локального состояния с балансом брокера.
// notify=false (реплей/бэктест) обновляет состояние без событий.
func (p *Portfolio) SyncWithBroker(ctx context.Context, bal *models.BrokerBalance, notify bool, tagLookup func(string) string) {
	if bal == nil {
		return
	}

	p.mu.Lock()
	p.updateBalance(bal.Summary)
	p.syncPositions(ctx, bal.Holdings, notify, tagLookup)
	metas := p.collectMetaLocked()
	p.mu.Unlock()

	p.state.Save(metas)
}

func (p *Portfolio) updateBalance(summary []models.BalanceSummary) {
	if len(summary) == 0 {
		return
	}
	s := summary[0]
	p.cash = parseAmount(s.Cash)
	p.depositD1 = parseAmount(s.DepositD1)
	p.depositD2 = parseAmount(s.DepositD2)
	p.totalAsset = parseAmount(s.TotalAsset)
}

func (p *Portfolio) syncPositions(ctx context.Context, holdings []models.Holding, notify bool, tagLookup func(string) string) {
	// Пустой список при непустом локальном состоянии — подозрение на сбой API,
	// а не на внезапное закрытие всего: сверку отбрасываем целиком.
	if len(holdings) == 0 && len(p.positions) > 0 {
		logger.Warn("broker returned 0 holdings while local has %d, ignoring sync to prevent data loss", len(p.positions))
		return
	}

	current := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		symbol := h.Symbol
		qty := int(parseAmount(h.Qty))
		avgPrice := parseAmount(h.AvgPrice)
		currentPrice := parseAmount(h.CurrentPrice)
		name := h.Name
		if name == "" {
			name = symbol
		}
		current[symbol] = true

		meta, hasMeta := p.state.Get(symbol)
		tag := meta.Tag
		if tag == "" && tagLookup != nil {
			tag = tagLookup(symbol)
		}

		acquired := p.backfillAcquiredTime(ctx, symbol, meta.FirstAcquired())

		if _, ok := p.positions[symbol]; ok {
			p.updateExisting(symbol, name, qty, avgPrice, currentPrice, tag, acquired, notify)
		} else {
			p.createNew(symbol, name, qty, avgPrice, currentPrice, meta, hasMeta, tag, acquired, notify)
		}
	}

	p.removeClosed(current, notify)
}

// backfillAcquiredTime — разовая (на символ за процесс) проверка времени входа
// по журналу сделок; кеш может отставать после ручных сделок в HTS.
func (p *Portfolio) backfillAcquiredTime(ctx context.Context, symbol string, saved time.Time) time.Time {
	if p.checkedBackfill[symbol] {
		return saved
	}
	p.checkedBackfill[symbol] = true
	if p.history == nil {
		return saved
	}

	entry, ok, err := p.history.LastEntryTime(ctx, symbol)
	if err != nil {
		logger.Warn("failed to backfill acquired time for %s: %v", symbol, err)
		return saved
	}
	if !ok {
		return saved
	}
	if saved.IsZero() || entry.Sub(saved).Abs() > acquiredDrift {
		logger.Info("correction: backfilling acquired time for %s: %v -> %v", symbol, saved, entry)
		return entry
	}
	return saved
}

func (p *Portfolio) updateExisting(symbol, name string, qty int, avgPrice, currentPrice float64, tag string, acquired time.Time, notify bool) {
	pos := p.positions[symbol]
	oldAvgPrice := pos.AvgPrice

	if qty != pos.Qty {
		diff := qty - pos.Qty
		changeType := models.SellFilled
		execPrice := currentPrice
		if diff > 0 {
			changeType = models.BuyFilled
			execPrice = avgPrice
		}
		if qty == 0 && diff < 0 {
			changeType = models.PositionClosed
		}

		if notify {
			p.emit(models.PositionChange{
				Type:        changeType,
				Symbol:      symbol,
				Name:        name,
				Tag:         pos.Tag,
				ExecQty:     abs(diff),
				ExecPrice:   execPrice,
				NewQty:      qty,
				NewAvgPrice: avgPrice,
				OldAvgPrice: oldAvgPrice,
				TotalAsset:  p.totalAsset,
			})
		}
	}

	pos.Name = name
	pos.Qty = qty
	pos.AvgPrice = avgPrice
	if !acquired.IsZero() {
		pos.FirstAcquired = acquired
	}

	if time.Since(pos.LastUpdate) > priceFreshness {
		pos.CurrentPrice = currentPrice
	}

	if pos.Qty <= 0 {
		delete(p.positions, symbol)
	}
}

func (p *Portfolio) createNew(symbol, name string, qty int, avgPrice, currentPrice float64, meta PositionMeta, hasMeta bool, tag string, acquired time.Time, notify bool) {
	if qty <= 0 {
		return
	}

	maxPrice := currentPrice
	partialTaken := false
	if hasMeta {
		partialTaken = meta.PartialTaken
		if meta.MaxPrice > maxPrice {
			maxPrice = meta.MaxPrice
		}
	}
	if acquired.IsZero() {
		acquired = time.Now()
	}

	p.positions[symbol] = &models.Position{
		Symbol:        symbol,
		Name:          name,
		Qty:           qty,
		AvgPrice:      avgPrice,
		CurrentPrice:  currentPrice,
		Tag:           tag,
		PartialTaken:  partialTaken,
		MaxPrice:      maxPrice,
		FirstAcquired: acquired,
	}

	if notify {
		p.emit(models.PositionChange{
			Type:        models.BuyFilled,
			Symbol:      symbol,
			Name:        name,
			Tag:         tag,
			ExecQty:     qty,
			ExecPrice:   avgPrice,
			NewQty:      qty,
			NewAvgPrice: avgPrice,
			OldAvgPrice: 0,
			TotalAsset:  p.totalAsset,
		})
	}
}

// removeClosed — позиции, пропавшие из ответа брокера, закрыты где-то ещё
// (HTS, другой терминал); точной цены выхода нет, берём последнюю известную.
func (p *Portfolio) removeClosed(current map[string]bool, notify bool) {
	for symbol, pos := range p.positions {
		if current[symbol] {
			continue
		}
		if notify {
			p.emit(models.PositionChange{
				Type:        models.PositionClosed,
				Symbol:      symbol,
				Name:        pos.Name,
				Tag:         pos.Tag,
				ExecQty:     pos.Qty,
				ExecPrice:   pos.CurrentPrice,
				NewQty:      0,
				NewAvgPrice: 0,
				OldAvgPrice: pos.AvgPrice,
				TotalAsset:  p.totalAsset,
			})
		}
		logger.Info("removing %s (missing from broker sync), old qty: %d", symbol, pos.Qty)
		delete(p.positions, symbol)
	}
}

func (p *Portfolio) emit(change models.PositionChange) {
	for _, fn := range p.onChange {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("position change callback panic: %v", r)
				}
			}()
			fn(change)
		}()
	}
}

// UpdateMarketPrice — единственный писатель CurrentPrice на живых тиках.
func (p *Portfolio) UpdateMarketPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	if price > pos.MaxPrice {
		pos.MaxPrice = price
	}
	pos.LastUpdate = time.Now()
}

// RaiseMaxPrice — продвижение high-water mark с немедленной записью метаданных.
func (p *Portfolio) RaiseMaxPrice(symbol string, price float64) {
	p.mu.Lock()
	pos, ok := p.positions[symbol]
	if !ok || price <= pos.MaxPrice {
		p.mu.Unlock()
		return
	}
	pos.MaxPrice = price
	metas := p.collectMetaLocked()
	p.mu.Unlock()

	p.state.Save(metas)
}

// MarkPartialTaken — флаг первой фиксации; живёт до закрытия позиции.
func (p *Portfolio) MarkPartialTaken(symbol string) {
	p.mu.Lock()
	pos, ok := p.positions[symbol]
	if !ok || pos.PartialTaken {
		p.mu.Unlock()
		return
	}
	pos.PartialTaken = true
	metas := p.collectMetaLocked()
	p.mu.Unlock()

	p.state.Save(metas)
}

// UpdatePosition — оптимистичная локальная проводка по нашему же ордеру;
// истиной остаётся ближайший SyncWithBroker. qty < 0 — продажа.
func (p *Portfolio) UpdatePosition(symbol string, qty int, price float64, tag string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		if qty > 0 {
			p.positions[symbol] = &models.Position{
				Symbol:        symbol,
				Name:          symbol,
				Qty:           qty,
				AvgPrice:      price,
				CurrentPrice:  price,
				Tag:           tag,
				MaxPrice:      price,
				FirstAcquired: time.Now(),
			}
		}
		return
	}

	if qty > 0 {
		totalCost := float64(pos.Qty)*pos.AvgPrice + float64(qty)*price
		pos.Qty += qty
		pos.AvgPrice = totalCost / float64(pos.Qty)
		if price > pos.MaxPrice {
			pos.MaxPrice = price
		}
		return
	}

	pos.Qty += qty
	if pos.Qty <= 0 {
		delete(p.positions, symbol)
	}
}

// GetPosition — копия снимка; мутации только через методы портфеля.
func (p *Portfolio) GetPosition(symbol string) (models.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

func (p *Portfolio) HasPosition(symbol string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.positions[symbol]
	return ok
}

func (p *Portfolio) OpenPositions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}

func (p *Portfolio) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.positions))
	for s := range p.positions {
		out = append(out, s)
	}
	return out
}

// Snapshot — копии всех позиций (для health-лога и /positions).
func (p *Portfolio) Snapshot() []models.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// BuyingPower — консервативно D+2: деньги, которые точно доступны к расчёту.
func (p *Portfolio) BuyingPower() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.depositD2
}

func (p *Portfolio) TotalAsset() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalAsset
}

// AccountValue — база для сайзинга (оценка счёта от брокера).
func (p *Portfolio) AccountValue() float64 {
	return p.TotalAsset()
}

func (p *Portfolio) collectMetaLocked() map[string]PositionMeta {
	metas := make(map[string]PositionMeta, len(p.positions))
	for symbol, pos := range p.positions {
		metas[symbol] = PositionMeta{
			PartialTaken:    pos.PartialTaken,
			MaxPrice:        pos.MaxPrice,
			Tag:             pos.Tag,
			FirstAcquiredAt: pos.FirstAcquired.Unix(),
		}
	}
	return metas
}

func parseAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
