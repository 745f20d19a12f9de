package bot

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"cardfarm/internal/farm"
	"cardfarm/internal/platform"
)

// NullValue marks a config entry that should be requested interactively.
const NullValue = "null"

// Config is the per-bot configuration loaded from <botName>.xml. The file is
// element-per-key: each child element names a key and carries the value in a
// "value" attribute. Unknown keys are logged and ignored.
type Config struct {
	Enabled                   bool
	SteamLogin                string
	SteamPassword             string
	SteamNickname             string
	SteamAPIKey               string
	SteamParentalPIN          string
	SteamMasterID             platform.SteamID
	SteamMasterClanID         platform.SteamID
	CardDropsRestricted       bool
	ShutdownOnFarmingFinished bool
	FarmOffline               bool
	Statistics                bool
	FarmingOrder              farm.Order
	Blacklist                 map[uint32]bool
}

// DefaultConfig returns the defaults applied before parsing.
func DefaultConfig() *Config {
	return &Config{
		SteamLogin:       NullValue,
		SteamPassword:    NullValue,
		SteamNickname:    NullValue,
		SteamAPIKey:      NullValue,
		SteamParentalPIN: "0",
		Statistics:       true,
		Blacklist: map[uint32]bool{
			303700: true,
			335590: true,
			368020: true,
		},
	}
}

// LoadConfig parses a per-bot XML config file.
func LoadConfig(path string, logger *log.Logger) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	if err := cfg.parse(xml.NewDecoder(f), logger); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses per-bot XML config from a string, mostly for tests.
func ParseConfig(data string, logger *log.Logger) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.parse(xml.NewDecoder(strings.NewReader(data)), logger); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parse(dec *xml.Decoder, logger *log.Logger) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth != 2 {
				continue
			}
			value := ""
			for _, attr := range el.Attr {
				if attr.Name.Local == "value" {
					value = attr.Value
				}
			}
			if err := c.applyKey(el.Name.Local, value, logger); err != nil {
				return err
			}
		case xml.EndElement:
			depth--
		}
	}
}

func (c *Config) applyKey(key, value string, logger *log.Logger) error {
	switch key {
	case "Enabled":
		return parseBoolInto(key, value, &c.Enabled)
	case "SteamLogin":
		c.SteamLogin = value
	case "SteamPassword":
		c.SteamPassword = value
	case "SteamNickname":
		c.SteamNickname = value
	case "SteamApiKey":
		c.SteamAPIKey = value
	case "SteamParentalPIN":
		c.SteamParentalPIN = value
	case "SteamMasterID":
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		c.SteamMasterID = platform.SteamID(id)
	case "SteamMasterClanID":
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		c.SteamMasterClanID = platform.SteamID(id)
	case "CardDropsRestricted":
		return parseBoolInto(key, value, &c.CardDropsRestricted)
	case "ShutdownOnFarmingFinished":
		return parseBoolInto(key, value, &c.ShutdownOnFarmingFinished)
	case "FarmOffline":
		return parseBoolInto(key, value, &c.FarmOffline)
	case "Statistics":
		return parseBoolInto(key, value, &c.Statistics)
	case "FarmingOrder":
		order, err := farm.ParseOrder(value)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		c.FarmingOrder = order
	case "Blacklist":
		blacklist := make(map[uint32]bool)
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 32)
			if err != nil {
				return fmt.Errorf("key %s: %w", key, err)
			}
			blacklist[uint32(id)] = true
		}
		c.Blacklist = blacklist
	default:
		logger.Warn("unknown config key, ignoring", "key", key)
	}
	return nil
}

func parseBoolInto(key, value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("key %s: %w", key, err)
	}
	*dst = b
	return nil
}
