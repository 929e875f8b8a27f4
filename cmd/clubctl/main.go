// clubctl is the operations CLI for the club engine: seed clubs and
// fixtures from a YAML file at season launch, and open or close trading
// windows around match days.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var engineURL string

// SeedFile is the YAML layout consumed by `clubctl seed`.
type SeedFile struct {
	Clubs []struct {
		ID              string  `yaml:"id"`
		Name            string  `yaml:"name"`
		MarketCap       string  `yaml:"market_cap"`
		TotalShares     int64   `yaml:"total_shares"`
		AvailableShares int64   `yaml:"available_shares"`
	} `yaml:"clubs"`
	Fixtures []struct {
		ID         string    `yaml:"id"`
		HomeClubID string    `yaml:"home_club_id"`
		AwayClubID string    `yaml:"away_club_id"`
		KickoffAt  time.Time `yaml:"kickoff_at"`
	} `yaml:"fixtures"`
}

func main() {
	root := &cobra.Command{
		Use:   "clubctl",
		Short: "Operations CLI for the club engine",
	}
	root.PersistentFlags().StringVar(&engineURL, "engine", "http://localhost:8080", "base URL of the club engine")

	root.AddCommand(seedCmd(), windowCmd("lock"), windowCmd("unlock"))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create clubs and fixtures from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var seed SeedFile
			if err := yaml.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			for _, c := range seed.Clubs {
				body := map[string]interface{}{
					"id":               c.ID,
					"name":             c.Name,
					"market_cap":       c.MarketCap,
					"total_shares":     c.TotalShares,
					"available_shares": c.AvailableShares,
				}
				if err := post("/api/v1/clubs", body); err != nil {
					return fmt.Errorf("club %s: %w", c.Name, err)
				}
				fmt.Printf("club created: %s\n", c.Name)
			}

			for _, f := range seed.Fixtures {
				body := map[string]interface{}{
					"id":           f.ID,
					"home_club_id": f.HomeClubID,
					"away_club_id": f.AwayClubID,
					"kickoff_at":   f.KickoffAt,
				}
				if err := post("/api/v1/fixtures", body); err != nil {
					return fmt.Errorf("fixture %s vs %s: %w", f.HomeClubID, f.AwayClubID, err)
				}
				fmt.Printf("fixture created: %s vs %s\n", f.HomeClubID, f.AwayClubID)
			}
			return nil
		},
	}
}

func windowCmd(action string) *cobra.Command {
	short := "Close the trading window for a club"
	if action == "unlock" {
		short = "Open the trading window for a club"
	}
	return &cobra.Command{
		Use:   action + " <clubID>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := post(fmt.Sprintf("/api/v1/clubs/%s/%s", args[0], action), nil); err != nil {
				return err
			}
			fmt.Printf("club %s: %sed\n", args[0], action)
			return nil
		},
	}
}

func post(path string, body interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	resp, err := http.Post(engineURL+path, "application/json", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Kind  string `json:"kind"`
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s: %s (%s)", resp.Status, apiErr.Error, apiErr.Kind)
	}
	return nil
}
