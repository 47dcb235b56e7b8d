// Package refdata fetches reference geography from the IBGE localidades API.
package refdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/fetcher"
	"github.com/urbix/urbix-etl/internal/model"
)

// DefaultBaseURL is the public IBGE service root.
const DefaultBaseURL = "https://servicodados.ibge.gov.br/api/v1"

// Options tunes a Client.
type Options struct {
	BaseURL       string
	RegionTimeout time.Duration
	BulkTimeout   time.Duration
}

// Client reads states and municipalities. It is safe for sequential use
// by one loader.
type Client struct {
	f    fetcher.Fetcher
	opts Options
}

// New creates a Client. Zero options take the service defaults.
func New(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.RegionTimeout <= 0 {
		opts.RegionTimeout = 30 * time.Second
	}
	if opts.BulkTimeout <= 0 {
		opts.BulkTimeout = 60 * time.Second
	}
	return &Client{f: f, opts: opts}
}

// Endpoint returns the base URL recorded on sync runs.
func (c *Client) Endpoint() string {
	return c.opts.BaseURL
}

// Regions fetches every state.
func (c *Client) Regions(ctx context.Context) ([]model.Region, error) {
	states, err := fetchArray[state](ctx, c, c.opts.BaseURL+"/localidades/estados", c.opts.RegionTimeout)
	if err != nil {
		return nil, err
	}

	out := make([]model.Region, 0, len(states))
	for _, s := range states {
		out = append(out, s.region())
	}
	zap.L().Info("refdata: fetched regions", zap.Int("count", len(out)))
	return out, nil
}

// SubRegions fetches municipalities, all of them when regionCode is empty.
func (c *Client) SubRegions(ctx context.Context, regionCode string) ([]model.SubRegion, error) {
	url := c.opts.BaseURL + "/localidades/municipios"
	if regionCode != "" {
		url = c.opts.BaseURL + "/localidades/estados/" + regionCode + "/municipios"
	}

	munis, err := fetchArray[municipality](ctx, c, url, c.opts.BulkTimeout)
	if err != nil {
		return nil, err
	}

	out := make([]model.SubRegion, 0, len(munis))
	for _, m := range munis {
		out = append(out, m.subRegion())
	}
	zap.L().Info("refdata: fetched sub-regions",
		zap.String("region", regionCode),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func fetchArray[T any](ctx context.Context, c *Client, url string, timeout time.Duration) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(model.ErrFetchFailed, "refdata: download %s: %v", url, err)
	}
	defer body.Close() //nolint:errcheck

	items, err := fetcher.CollectJSONArray[T](ctx, body)
	if err != nil {
		return nil, eris.Wrapf(model.ErrFetchFailed, "refdata: decode %s: %v", url, err)
	}
	return items, nil
}

type state struct {
	ID     int64  `json:"id"`
	Sigla  string `json:"sigla"`
	Nome   string `json:"nome"`
	Regiao struct {
		Nome string `json:"nome"`
	} `json:"regiao"`
}

func (s state) region() model.Region {
	return model.Region{
		Code:         strconv.FormatInt(s.ID, 10),
		Name:         s.Nome,
		Abbreviation: s.Sigla,
		Macroregion:  s.Regiao.Nome,
	}
}

type ufRef struct {
	UF *struct {
		ID int64 `json:"id"`
	} `json:"UF"`
}

type municipality struct {
	ID           int64  `json:"id"`
	Nome         string `json:"nome"`
	Microrregiao *struct {
		Mesorregiao *ufRef `json:"mesorregiao"`
	} `json:"microrregiao"`
	RegiaoImediata *struct {
		RegiaoIntermediaria *ufRef `json:"regiao-intermediaria"`
	} `json:"regiao-imediata"`
}

// ownerCode resolves the state code through the micro-region, falling back
// to the immediate region for municipalities created after 2017.
func (m municipality) ownerCode() string {
	if m.Microrregiao != nil && m.Microrregiao.Mesorregiao != nil && m.Microrregiao.Mesorregiao.UF != nil {
		return strconv.FormatInt(m.Microrregiao.Mesorregiao.UF.ID, 10)
	}
	if m.RegiaoImediata != nil && m.RegiaoImediata.RegiaoIntermediaria != nil && m.RegiaoImediata.RegiaoIntermediaria.UF != nil {
		return strconv.FormatInt(m.RegiaoImediata.RegiaoIntermediaria.UF.ID, 10)
	}
	return ""
}

func (m municipality) subRegion() model.SubRegion {
	return model.SubRegion{
		Code:       strconv.FormatInt(m.ID, 10),
		Name:       m.Nome,
		RegionCode: m.ownerCode(),
		Country:    model.DefaultCountry,
	}
}
