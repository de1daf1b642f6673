package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type PrizeConfig struct {
	Id               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Value            string   `yaml:"value"`
	Probability      float64  `yaml:"probability"`
	BonusProbability *float64 `yaml:"bonus_probability"`
	Drawable         bool     `yaml:"drawable"`
}

type CaseConfig struct {
	Id     string        `yaml:"id"`
	Name   string        `yaml:"name"`
	Price  string        `yaml:"price"`
	Active bool          `yaml:"active"`
	Prizes []PrizeConfig `yaml:"prizes"`
}

type CatalogConfig struct {
	Cases []CaseConfig `yaml:"cases"`
}

func LoadCatalogConfig(catalogFile string) ([]CaseConfig, error) {
	var catalogPath string
	if filepath.IsAbs(catalogFile) {
		catalogPath = catalogFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		catalogPath = filepath.Join(wd, catalogFile)
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogFile, err)
	}

	var config CatalogConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", catalogFile, err)
	}

	for i, c := range config.Cases {
		if c.Id == "" {
			return nil, fmt.Errorf("case at index %d missing id", i)
		}
		if c.Name == "" {
			return nil, fmt.Errorf("case %s missing name", c.Id)
		}
		if len(c.Prizes) == 0 {
			return nil, fmt.Errorf("case %s has no prizes", c.Id)
		}
		for j, p := range c.Prizes {
			if p.Id == "" {
				return nil, fmt.Errorf("case %s prize at index %d missing id", c.Id, j)
			}
			if p.Probability < 0 {
				return nil, fmt.Errorf("case %s prize %s has negative probability", c.Id, p.Id)
			}
		}
	}

	return config.Cases, nil
}

// SyncCatalog loads the case catalog from a YAML file and upserts every case
// and its prize table into the store.
func SyncCatalog(ctx context.Context, st store.Store, catalogFile string) error {
	caseConfigs, err := LoadCatalogConfig(catalogFile)
	if err != nil {
		return err
	}

	for _, cc := range caseConfigs {
		price, err := decimal.NewFromString(cc.Price)
		if err != nil {
			return fmt.Errorf("case %s has invalid price %q: %w", cc.Id, cc.Price, err)
		}

		prizes := make([]models.Prize, len(cc.Prizes))
		for i, pc := range cc.Prizes {
			value, err := decimal.NewFromString(pc.Value)
			if err != nil {
				return fmt.Errorf("case %s prize %s has invalid value %q: %w", cc.Id, pc.Id, pc.Value, err)
			}
			prizes[i] = models.Prize{
				Id:               pc.Id,
				CaseId:           cc.Id,
				Name:             pc.Name,
				Value:            value,
				Probability:      pc.Probability,
				BonusProbability: pc.BonusProbability,
				Drawable:         pc.Drawable,
				Active:           true,
			}
		}

		if err := st.UpsertCase(ctx, models.Case{
			Id:     cc.Id,
			Name:   cc.Name,
			Price:  price,
			Active: cc.Active,
		}, prizes); err != nil {
			return fmt.Errorf("failed to upsert case %s: %w", cc.Id, err)
		}

		zap.L().Info("Case synced",
			zap.String("case_id", cc.Id),
			zap.String("price", price.String()),
			zap.Int("prizes", len(prizes)))
	}

	return nil
}
