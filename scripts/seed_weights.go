// seed_weights.go: standalone script that loads scenario weights from a YAML
// file of percentages and writes them through the RiskIndex API.
//
// Usage:
//
//	go run scripts/seed_weights.go -file weights.yaml -api http://localhost:8700 -token $RISKINDEX_ADMIN_TOKEN
//
// File format:
//
//	scenario_id: 1
//	categories:
//	  - category_id: 1
//	    percent: 60
//	    indicators:
//	      - indicator_id: 3
//	        percent: 50
//	      - indicator_id: 4
//	        percent: 50
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/RiskIndex/internal/scoring"
)

type weightsFile struct {
	ScenarioID int64           `yaml:"scenario_id"`
	Categories []categoryEntry `yaml:"categories"`
}

type categoryEntry struct {
	CategoryID int64            `yaml:"category_id"`
	Percent    float64          `yaml:"percent"`
	Indicators []indicatorEntry `yaml:"indicators"`
}

type indicatorEntry struct {
	IndicatorID int64   `yaml:"indicator_id"`
	Percent     float64 `yaml:"percent"`
}

type categoryItem struct {
	CategoryID int64   `json:"category_id"`
	Weight     float64 `json:"weight"`
}

type indicatorItem struct {
	IndicatorID int64   `json:"indicator_id"`
	Weight      float64 `json:"weight"`
}

func main() {
	path := flag.String("file", "weights.yaml", "path to weights YAML file")
	apiURL := flag.String("api", "http://localhost:8700", "RiskIndex API base URL")
	token := flag.String("token", os.Getenv("RISKINDEX_ADMIN_TOKEN"), "admin bearer token")
	dryRun := flag.Bool("dry-run", false, "print weights without sending")
	flag.Parse()

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read %s: %v", *path, err)
	}
	var wf weightsFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		log.Fatalf("parse %s: %v", *path, err)
	}
	if wf.ScenarioID <= 0 {
		log.Fatalf("scenario_id is required")
	}

	cats := make([]categoryItem, 0, len(wf.Categories))
	check := make([]scoring.CategoryWeight, 0, len(wf.Categories))
	for _, c := range wf.Categories {
		w := scoring.PercentToFraction(c.Percent)
		cats = append(cats, categoryItem{CategoryID: c.CategoryID, Weight: w})
		check = append(check, scoring.CategoryWeight{CategoryID: scoring.CategoryID(c.CategoryID), Weight: w})
	}
	if err := scoring.ValidateCategoryWeights(check); err != nil {
		log.Fatalf("category weights: %v", err)
	}

	if *dryRun {
		for _, c := range wf.Categories {
			fmt.Printf("category %d: %.4f\n", c.CategoryID, scoring.PercentToFraction(c.Percent))
			for _, ind := range c.Indicators {
				fmt.Printf("  indicator %d: %.4f\n", ind.IndicatorID, scoring.PercentToFraction(ind.Percent))
			}
		}
		return
	}

	client := &http.Client{}
	base := fmt.Sprintf("%s/api/v1/scenarios/%d/weights/categories", *apiURL, wf.ScenarioID)
	if err := put(client, base, *token, map[string]any{"items": cats}); err != nil {
		log.Fatalf("category weights: %v", err)
	}
	log.Printf("saved %d category weights for scenario %d", len(cats), wf.ScenarioID)

	saved, failed := 0, 0
	for _, c := range wf.Categories {
		if len(c.Indicators) == 0 {
			continue
		}
		items := make([]indicatorItem, 0, len(c.Indicators))
		for _, ind := range c.Indicators {
			items = append(items, indicatorItem{IndicatorID: ind.IndicatorID, Weight: scoring.PercentToFraction(ind.Percent)})
		}
		url := fmt.Sprintf("%s/%d/indicators", base, c.CategoryID)
		if err := put(client, url, *token, map[string]any{"items": items}); err != nil {
			log.Printf("skip category %d: %v", c.CategoryID, err)
			failed++
			continue
		}
		saved++
	}

	log.Printf("done: %d indicator sets saved, %d failed", saved, failed)
}

func put(client *http.Client, url, token string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
