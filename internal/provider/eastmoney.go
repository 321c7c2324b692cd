package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"stock-radar/internal/config"
	rerrors "stock-radar/internal/errors"
	"stock-radar/internal/resilience"
	"stock-radar/pkg/utils"
)

const (
	defaultQuoteHost = "https://push2.eastmoney.com"
	rankHost         = "https://emappdata.eastmoney.com"
	newsHost         = "https://np-listapi.eastmoney.com"
)

// EastMoneyClient fetches market data from the EastMoney public endpoints.
// All requests go through a shared rate limiter and a circuit breaker so a
// flapping upstream degrades to skipped sweeps instead of hammering it.
type EastMoneyClient struct {
	cfg     config.ProviderConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   utils.RetryConfig
	logger  zerolog.Logger

	mu        sync.Mutex
	prevRanks map[string]int // code -> rank at previous attention poll
}

// NewEastMoneyClient creates a client from provider configuration.
func NewEastMoneyClient(cfg config.ProviderConfig, logger zerolog.Logger) *EastMoneyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultQuoteHost
	}
	retry := utils.DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	return &EastMoneyClient{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker:   resilience.NewCircuitBreaker("eastmoney", resilience.DefaultCircuitBreakerConfig()),
		retry:     retry,
		logger:    logger.With().Str("component", "provider").Logger(),
		prevRanks: make(map[string]int),
	}
}

// secid maps a bare A-share code to the exchange-prefixed id the quote
// endpoints expect. 6xx/9xx codes trade in Shanghai, the rest in Shenzhen.
func secid(symbol string) string {
	if strings.HasPrefix(symbol, "6") || strings.HasPrefix(symbol, "9") {
		return "1." + symbol
	}
	return "0." + symbol
}

func (c *EastMoneyClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, rawURL, nil, out)
}

func (c *EastMoneyClient) doJSON(ctx context.Context, method, rawURL string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	return c.breaker.Execute(ctx, func() error {
		return utils.Retry(ctx, c.retry, func() error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
			if err != nil {
				return err
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			req.Header.Set("User-Agent", "stock-radar/1.0")

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return rerrors.ErrRateLimited
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("%w: status %d", rerrors.ErrDataUnavailable, resp.StatusCode)
			}

			dec := json.NewDecoder(resp.Body)
			dec.UseNumber()
			return dec.Decode(out)
		})
	})
}

// GetOHLCV returns daily bars between start and end, oldest first.
func (c *EastMoneyClient) GetOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error) {
	q := url.Values{}
	q.Set("secid", secid(symbol))
	q.Set("klt", "101") // daily
	q.Set("fqt", "1")   // forward adjusted
	q.Set("beg", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))
	q.Set("fields1", "f1,f2,f3")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f59")

	var payload struct {
		Data struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	u := c.cfg.BaseURL + "/api/qt/stock/kline/get?" + q.Encode()
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, rerrors.NewDataError("ohlcv", symbol, "fetch failed", err)
	}

	candles := make([]Candle, 0, len(payload.Data.Klines))
	for _, line := range payload.Data.Klines {
		parts := strings.Split(line, ",")
		if len(parts) < 8 {
			continue
		}
		date, err := time.ParseInLocation("2006-01-02", parts[0], time.Local)
		if err != nil {
			continue
		}
		candles = append(candles, Candle{
			Date:      date,
			Open:      utils.SafeFloat(parts[1]),
			Close:     utils.SafeFloat(parts[2]),
			High:      utils.SafeFloat(parts[3]),
			Low:       utils.SafeFloat(parts[4]),
			Volume:    utils.SafeFloat(parts[5]),
			Amount:    utils.SafeFloat(parts[6]),
			PctChange: utils.SafeFloat(parts[7]),
		})
	}
	if len(candles) == 0 {
		return nil, rerrors.NewDataError("ohlcv", symbol, "empty kline response", rerrors.ErrDataUnavailable)
	}
	return candles, nil
}

// GetIntraday returns today's minute bars, oldest first.
func (c *EastMoneyClient) GetIntraday(ctx context.Context, symbol string) ([]MinuteBar, error) {
	q := url.Values{}
	q.Set("secid", secid(symbol))
	q.Set("klt", "1") // 1-minute
	q.Set("fqt", "1")
	q.Set("beg", "0")
	q.Set("end", "20500101")
	q.Set("fields1", "f1,f2,f3")
	q.Set("fields2", "f51,f53,f56")

	var payload struct {
		Data struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	u := c.cfg.BaseURL + "/api/qt/stock/kline/get?" + q.Encode()
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, rerrors.NewDataError("intraday", symbol, "fetch failed", err)
	}

	bars := make([]MinuteBar, 0, len(payload.Data.Klines))
	for _, line := range payload.Data.Klines {
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04", parts[0], time.Local)
		if err != nil {
			continue
		}
		bars = append(bars, MinuteBar{
			Time:   ts,
			Close:  utils.SafeFloat(parts[1]),
			Volume: utils.SafeFloat(parts[2]),
		})
	}
	if len(bars) == 0 {
		return nil, rerrors.NewDataError("intraday", symbol, "empty minute response", rerrors.ErrDataUnavailable)
	}
	return bars, nil
}

// GetDisclosures returns disclosure rows for a symbol, newest first.
func (c *EastMoneyClient) GetDisclosures(ctx context.Context, kind DisclosureKind, symbol string) ([]DisclosureRecord, error) {
	var reportName string
	switch kind {
	case DisclosureForecast:
		reportName = "RPT_PUBLIC_OP_NEWPREDICT"
	case DisclosureUnlock:
		reportName = "RPT_LIFT_STAGE"
	default:
		return nil, rerrors.NewDataError("disclosure", symbol, fmt.Sprintf("unknown kind %q", kind), nil)
	}

	q := url.Values{}
	q.Set("reportName", reportName)
	q.Set("filter", fmt.Sprintf(`(SECURITY_CODE="%s")`, symbol))
	q.Set("sortColumns", "NOTICE_DATE")
	q.Set("sortTypes", "-1")
	q.Set("pageSize", "200")

	var payload struct {
		Result struct {
			Data []map[string]interface{} `json:"data"`
		} `json:"result"`
	}
	u := "https://datacenter-web.eastmoney.com/api/data/v1/get?" + q.Encode()
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, rerrors.NewDataError("disclosure", symbol, "fetch failed", err)
	}

	records := make([]DisclosureRecord, 0, len(payload.Result.Data))
	for _, row := range payload.Result.Data {
		fields := make(map[string]string, len(row))
		for k, v := range row {
			fields[k] = asString(v)
		}
		rec := DisclosureRecord{
			Symbol: symbol,
			Fields: fields,
		}
		switch kind {
		case DisclosureForecast:
			rec.Date = fields["NOTICE_DATE"]
			rec.ReportPeriod = fields["REPORT_DATE"]
			rec.Content = fields["PREDICT_CONTENT"]
		case DisclosureUnlock:
			rec.Date = fields["FREE_DATE"]
			rec.Content = fields["LIFT_TYPE"]
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetBoardSummary returns the current industry-board snapshot.
func (c *EastMoneyClient) GetBoardSummary(ctx context.Context) ([]BoardRow, error) {
	q := url.Values{}
	q.Set("fs", "m:90+t:2") // industry boards
	q.Set("fields", "f3,f6,f14,f62,f104,f105,f128,f136")
	q.Set("pn", "1")
	q.Set("pz", "200")
	q.Set("po", "1")
	q.Set("fid", "f3")

	var payload struct {
		Data struct {
			Diff []map[string]interface{} `json:"diff"`
		} `json:"data"`
	}
	u := c.cfg.BaseURL + "/api/qt/clist/get?" + q.Encode()
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, rerrors.NewDataError("board", "", "fetch failed", err)
	}

	rows := make([]BoardRow, 0, len(payload.Data.Diff))
	for _, d := range payload.Data.Diff {
		rows = append(rows, BoardRow{
			Name:         asString(d["f14"]),
			PctChange:    asString(d["f3"]),
			TotalAmount:  asString(d["f6"]),
			NetInflow:    asString(d["f62"]),
			RiseCount:    asString(d["f104"]),
			FallCount:    asString(d["f105"]),
			LeaderStock:  asString(d["f128"]),
			LeaderChange: asString(d["f136"]),
		})
	}
	if len(rows) == 0 {
		return nil, rerrors.NewDataError("board", "", "empty board response", rerrors.ErrDataUnavailable)
	}
	return rows, nil
}

// GetAttentionRanking returns the market attention ranking. Rank change is
// measured against the previous poll of this client; the first poll of a
// process reports zero change for every stock.
func (c *EastMoneyClient) GetAttentionRanking(ctx context.Context) ([]AttentionRow, error) {
	body, err := json.Marshal(map[string]interface{}{
		"appId":      "appId01",
		"globalId":   uuid.NewString(),
		"marketType": "",
		"pageNo":     1,
		"pageSize":   100,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []rankedStock `json:"data"`
	}
	u := rankHost + "/stockrank/getAllCurrentList"
	if err := c.doJSON(ctx, http.MethodPost, u, body, &payload); err != nil {
		return nil, rerrors.NewDataError("attention", "", "fetch failed", err)
	}
	if len(payload.Data) == 0 {
		return nil, rerrors.NewDataError("attention", "", "empty ranking response", rerrors.ErrDataUnavailable)
	}

	codes := make([]string, 0, len(payload.Data))
	for _, d := range payload.Data {
		code := d.Sc
		if len(code) > 2 {
			code = code[2:]
		}
		codes = append(codes, code)
	}
	quotes, err := c.bulkQuotes(ctx, payload.Data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("attention quotes unavailable, ranks only")
		quotes = map[string]bulkQuote{}
	}

	c.mu.Lock()
	prev := c.prevRanks
	next := make(map[string]int, len(payload.Data))
	rows := make([]AttentionRow, 0, len(payload.Data))
	for i, d := range payload.Data {
		code := codes[i]
		next[code] = d.Rk
		change := 0
		if p, ok := prev[code]; ok {
			change = p - d.Rk // climbing the list is positive
		}
		q := quotes[code]
		rows = append(rows, AttentionRow{
			Code:        code,
			Name:        q.name,
			CurrentRank: fmt.Sprintf("%d", d.Rk),
			RankChange:  fmt.Sprintf("%d", change),
			LatestPrice: q.price,
			PctChange:   q.pctChange,
		})
	}
	c.prevRanks = next
	c.mu.Unlock()

	return rows, nil
}

type rankedStock struct {
	Sc string `json:"sc"` // exchange-prefixed code, e.g. SH600519
	Rk int    `json:"rk"`
}

type bulkQuote struct {
	name      string
	price     string
	pctChange string
}

func (c *EastMoneyClient) bulkQuotes(ctx context.Context, ranked []rankedStock) (map[string]bulkQuote, error) {
	secids := make([]string, 0, len(ranked))
	for _, d := range ranked {
		code := d.Sc
		if len(code) > 2 {
			code = code[2:]
		}
		secids = append(secids, secid(code))
	}

	q := url.Values{}
	q.Set("secids", strings.Join(secids, ","))
	q.Set("fields", "f2,f3,f12,f14")

	var payload struct {
		Data struct {
			Diff []map[string]interface{} `json:"diff"`
		} `json:"data"`
	}
	u := c.cfg.BaseURL + "/api/qt/ulist.np/get?" + q.Encode()
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}

	out := make(map[string]bulkQuote, len(payload.Data.Diff))
	for _, d := range payload.Data.Diff {
		code := asString(d["f12"])
		out[code] = bulkQuote{
			name:      asString(d["f14"]),
			price:     asString(d["f2"]),
			pctChange: asString(d["f3"]),
		}
	}
	return out, nil
}

// GetMacroNews returns recent 7x24 macro news flashes, newest first.
func (c *EastMoneyClient) GetMacroNews(ctx context.Context, limit int) ([]NewsItem, error) {
	if limit <= 0 {
		limit = c.cfg.NewsLimit
	}
	q := url.Values{}
	q.Set("client", "web")
	q.Set("biz", "web_724")
	q.Set("fastColumn", "102") // macro channel
	q.Set("pageSize", fmt.Sprintf("%d", limit))

	var payload struct {
		Data struct {
			FastNewsList []struct {
				ShowTime string `json:"showTime"`
				Title    string `json:"title"`
				Summary  string `json:"summary"`
			} `json:"fastNewsList"`
		} `json:"data"`
	}
	u := newsHost + "/comm/web/getFastNewsList?" + q.Encode()
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, rerrors.NewDataError("news", "", "fetch failed", err)
	}

	items := make([]NewsItem, 0, len(payload.Data.FastNewsList))
	for _, n := range payload.Data.FastNewsList {
		content := n.Summary
		if content == "" {
			content = n.Title
		}
		items = append(items, NewsItem{Time: n.ShowTime, Content: content})
	}
	if len(items) == 0 {
		return nil, rerrors.NewDataError("news", "", "empty news response", rerrors.ErrDataUnavailable)
	}
	return items, nil
}

// asString renders a decoded JSON value as its raw string form. Numbers
// decoded via UseNumber keep their exact textual representation.
func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
