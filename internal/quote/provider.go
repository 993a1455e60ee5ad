package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

const defaultEndpoint = "https://query2.finance.yahoo.com/v8/finance/chart"

// Provider fetches live quotes over HTTP. Failures never propagate to the
// poll loop: a symbol that cannot be fetched is simply absent from the
// result map, and a total failure yields an empty map.
type Provider struct {
	httpClient *http.Client
	endpoint   string
}

// NewProvider returns a provider with a bounded client so a hung endpoint
// cannot starve the poll loop.
func NewProvider() *Provider {
	return &Provider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   defaultEndpoint,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// FetchQuotes fetches each requested symbol and returns whatever succeeded.
func (p *Provider) FetchQuotes(ctx context.Context, symbols []string) map[string]models.Quote {
	quotes := make(map[string]models.Quote, len(symbols))
	for _, symbol := range symbols {
		q, err := p.fetchOne(ctx, symbol)
		if err != nil {
			log.Printf("quote fetch failed for %s: %v", symbol, err)
			continue
		}
		quotes[symbol] = q
	}
	return quotes
}

func (p *Provider) fetchOne(ctx context.Context, symbol string) (models.Quote, error) {
	endpoint := fmt.Sprintf("%s/%s?interval=1d&range=1d", p.endpoint, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("quote endpoint status %d", resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if len(payload.Chart.Result) == 0 {
		return models.Quote{}, fmt.Errorf("empty chart result for %s", symbol)
	}

	meta := payload.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return models.Quote{}, fmt.Errorf("no market price for %s", symbol)
	}

	prevClose := meta.ChartPreviousClose
	if prevClose <= 0 {
		prevClose = meta.PreviousClose
	}

	return models.Quote{
		Code:          symbol,
		Name:          meta.ShortName,
		Price:         meta.RegularMarketPrice,
		PreviousClose: prevClose,
		UpdateTime:    time.Now().Format("15:04:05.000"),
	}, nil
}
