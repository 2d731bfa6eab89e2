package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yanun0323/decimal"

	"hftbacktest/internal/schema"
	"hftbacktest/internal/state"
)

// FileConfig mirrors the JSON run-descriptor layout: the registry of
// venues/assets plus the dynamic configuration knobs enumerated in §9
// (exchange variant, queue model, latency model, depth mode, tape files).
type FileConfig struct {
	Registry RegistryConfig `json:"registry"`
	Exchange ExchangeConfig `json:"exchange"`
	Queue    QueueConfig    `json:"queue"`
	Latency  LatencyConfig  `json:"latency"`
	Depth    DepthConfig    `json:"depth"`
	Tape     TapeConfig     `json:"tape"`
}

// RegistryConfig defines venue and asset mappings.
type RegistryConfig struct {
	Venues  []VenueConfig  `json:"venues"`
	Symbols []SymbolConfig `json:"symbols"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// SymbolConfig describes an asset entry. TickSize/LotSize/fee rates are
// accepted as decimal strings on the wire and converted to float64 once at
// load time; the hot simulation path never touches decimal.Decimal.
type SymbolConfig struct {
	Name         string           `json:"name"`
	Venue        string           `json:"venue"`
	Scale        schema.ScaleSpec `json:"scale"`
	TickSize     string           `json:"tickSize"`
	LotSize      string           `json:"lotSize"`
	Fee          FeeConfig        `json:"fee"`
	ROILow       int64            `json:"roiLow"`
	ROIHigh      int64            `json:"roiHigh"`
	AssetType    string           `json:"assetType"`    // "linear" (default) or "inverse"
	ContractSize float64          `json:"contractSize"` // defaults to 1 when unset
}

// FeeConfig describes the maker/taker fee model for one asset.
type FeeConfig struct {
	Mode      string `json:"mode"` // "per_value", "per_qty", "per_trade"
	MakerFee  string `json:"makerFee"`
	TakerFee  string `json:"takerFee"`
}

// ExchangeConfig selects the exchange simulator variant (§4.E).
type ExchangeConfig struct {
	Variant string `json:"variant"` // "no_partial" or "partial"
}

// QueueConfig selects the queue position model variant (§4.D).
type QueueConfig struct {
	Variant   string  `json:"variant"` // "risk_averse", "prob", "l3"
	ProbFunc  string  `json:"probFunc"` // "identity", "square", "power", "log"
	Power     float64 `json:"power"`
	Normalize int     `json:"normalize"` // 0, 2, or 3 — selects the *2/*3 variants (power: 2, 3; log: 2); other values use the base variant
}

// LatencyConfig selects the latency model variant (§4.C).
type LatencyConfig struct {
	Variant     string `json:"variant"` // "constant", "feed", "interp"
	EntryNs     int64  `json:"entryNs"`
	ResponseNs  int64  `json:"responseNs"`
	FeedVariant string `json:"feedVariant"` // "plain", "backward", "forward"
	TableFile   string `json:"tableFile"`   // for "interp"
}

// DepthConfig selects L2 (MBP) or L3 (MBO) book reconstruction.
type DepthConfig struct {
	Mode string `json:"mode"` // "l2" or "l3"
}

// TapeConfig lists the tape and optional snapshot files for one asset.
type TapeConfig struct {
	Files    []string `json:"files"`
	Snapshot string   `json:"snapshot"`
}

// Loaded is the resolved configuration ready for use by internal/backtest.
type Loaded struct {
	Registry   *schema.Registry
	AssetTypes map[schema.SymbolID]state.AssetType
	Exchange   ExchangeConfig
	Queue      QueueConfig
	Latency    LatencyConfig
	Depth      DepthConfig
	Tape       TapeConfig
}

// Load reads a JSON run descriptor and builds the registry plus resolved
// component variants.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateExchange(cfg.Exchange); err != nil {
		return Loaded{}, err
	}
	if err := validateQueue(cfg.Queue); err != nil {
		return Loaded{}, err
	}
	if err := validateLatency(cfg.Latency); err != nil {
		return Loaded{}, err
	}
	if err := validateDepth(cfg.Depth); err != nil {
		return Loaded{}, err
	}
	if len(cfg.Tape.Files) == 0 {
		return Loaded{}, fmt.Errorf("tape.files is empty")
	}
	assetTypes := make(map[schema.SymbolID]state.AssetType, len(cfg.Registry.Symbols))
	for _, sym := range cfg.Registry.Symbols {
		id, ok := registry.SymbolIDByName(sym.Name)
		if !ok {
			continue
		}
		assetTypes[id] = resolveAssetType(sym)
	}
	return Loaded{
		Registry:   registry,
		AssetTypes: assetTypes,
		Exchange:   cfg.Exchange,
		Queue:      cfg.Queue,
		Latency:    cfg.Latency,
		Depth:      cfg.Depth,
		Tape:       cfg.Tape,
	}, nil
}

func resolveAssetType(sym SymbolConfig) state.AssetType {
	contractSize := sym.ContractSize
	if contractSize == 0 {
		contractSize = 1
	}
	if sym.AssetType == "inverse" {
		return state.InverseAsset{ContractSize: contractSize}
	}
	return state.LinearAsset{ContractSize: contractSize}
}

// LoadRegistry reads a JSON run descriptor and only builds the registry.
func LoadRegistry(path string) (*schema.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return buildRegistry(cfg.Registry)
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, sym := range cfg.Symbols {
		venueID, ok := reg.VenueIDByName(sym.Venue)
		if !ok {
			return nil, fmt.Errorf("venue not found: %s", sym.Venue)
		}
		if err := validateScale(sym.Scale); err != nil {
			return nil, fmt.Errorf("invalid scale for %s: %w", sym.Name, err)
		}
		assetCfg, err := resolveAssetConfig(sym)
		if err != nil {
			return nil, fmt.Errorf("invalid asset config for %s: %w", sym.Name, err)
		}
		if _, err := reg.AddSymbol(sym.Name, venueID, sym.Scale, assetCfg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveAssetConfig(sym SymbolConfig) (schema.AssetConfig, error) {
	tickSize, err := parseDecimal(sym.TickSize)
	if err != nil {
		return schema.AssetConfig{}, fmt.Errorf("tickSize: %w", err)
	}
	if tickSize <= 0 {
		return schema.AssetConfig{}, fmt.Errorf("tickSize must be > 0")
	}
	lotSize, err := parseDecimal(sym.LotSize)
	if err != nil {
		return schema.AssetConfig{}, fmt.Errorf("lotSize: %w", err)
	}
	if lotSize <= 0 {
		return schema.AssetConfig{}, fmt.Errorf("lotSize must be > 0")
	}
	fee, err := resolveFeeModel(sym.Fee)
	if err != nil {
		return schema.AssetConfig{}, err
	}
	if sym.ROIHigh < sym.ROILow {
		return schema.AssetConfig{}, fmt.Errorf("roiHigh must be >= roiLow")
	}
	return schema.AssetConfig{
		TickSize: tickSize,
		LotSize:  lotSize,
		Fee:      fee,
		ROILow:   sym.ROILow,
		ROIHigh:  sym.ROIHigh,
	}, nil
}

func resolveFeeModel(cfg FeeConfig) (schema.FeeModel, error) {
	var mode schema.FeeMode
	switch cfg.Mode {
	case "", "per_value":
		mode = schema.FeePerValue
	case "per_qty":
		mode = schema.FeePerQty
	case "per_trade":
		mode = schema.FeePerTrade
	default:
		return schema.FeeModel{}, fmt.Errorf("unknown fee mode: %s", cfg.Mode)
	}
	maker, err := parseDecimal(cfg.MakerFee)
	if err != nil {
		return schema.FeeModel{}, fmt.Errorf("makerFee: %w", err)
	}
	taker, err := parseDecimal(cfg.TakerFee)
	if err != nil {
		return schema.FeeModel{}, fmt.Errorf("takerFee: %w", err)
	}
	return schema.FeeModel{Mode: mode, MakerFee: maker, TakerFee: taker}, nil
}

// parseDecimal converts a wire decimal string into a float64 via the decimal
// library, keeping string parsing precision-safe before the value enters the
// scaled-tick hot path.
func parseDecimal(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 || scale.NotionalScale < 0 || scale.FeeScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}

func validateExchange(cfg ExchangeConfig) error {
	switch cfg.Variant {
	case "no_partial", "partial":
		return nil
	default:
		return fmt.Errorf("unknown exchange variant: %s", cfg.Variant)
	}
}

func validateQueue(cfg QueueConfig) error {
	switch cfg.Variant {
	case "risk_averse", "l3":
		return nil
	case "prob":
		switch cfg.ProbFunc {
		case "identity", "square", "power", "log":
			return nil
		default:
			return fmt.Errorf("unknown queue probFunc: %s", cfg.ProbFunc)
		}
	default:
		return fmt.Errorf("unknown queue variant: %s", cfg.Variant)
	}
}

func validateLatency(cfg LatencyConfig) error {
	switch cfg.Variant {
	case "constant":
		if cfg.EntryNs < 0 || cfg.ResponseNs < 0 {
			return fmt.Errorf("constant latency must be >= 0")
		}
		return nil
	case "feed":
		switch cfg.FeedVariant {
		case "", "plain", "backward", "forward":
			return nil
		default:
			return fmt.Errorf("unknown feed latency variant: %s", cfg.FeedVariant)
		}
	case "interp":
		if cfg.TableFile == "" {
			return fmt.Errorf("interp latency requires tableFile")
		}
		return nil
	default:
		return fmt.Errorf("unknown latency variant: %s", cfg.Variant)
	}
}

func validateDepth(cfg DepthConfig) error {
	switch cfg.Mode {
	case "l2", "l3":
		return nil
	default:
		return fmt.Errorf("unknown depth mode: %s", cfg.Mode)
	}
}
