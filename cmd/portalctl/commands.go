package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/care-portal/internal/config"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/pharmacy"
	"github.com/jwalitptl/care-portal/pkg/backend"
	"github.com/jwalitptl/care-portal/pkg/qr"
)

func inventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List medicines with the pharmacy view's filter and sort",
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			category, _ := cmd.Flags().GetString("category")
			sortBy, _ := cmd.Flags().GetString("sort")
			file, _ := cmd.Flags().GetString("file")
			token, _ := cmd.Flags().GetString("token")
			configPath, _ := cmd.Flags().GetString("config")

			var (
				medicines []model.Medicine
				err       error
			)
			if file != "" {
				medicines, err = readMedicines(file)
			} else {
				medicines, err = fetchMedicines(cmd.Context(), configPath, token)
			}
			if err != nil {
				return err
			}

			list := pharmacy.FilterMedicines(medicines, model.InventoryQuery{
				Search:   search,
				Category: category,
				SortBy:   model.SortKey(sortBy),
			})
			return printInventory(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().String("search", "", "Match name or generic name")
	cmd.Flags().String("category", model.CategoryAll, "Category, or all")
	cmd.Flags().String("sort", string(model.SortByName), "name, stock, price or category")
	cmd.Flags().String("file", "", "Read medicines from a JSON file instead of the backend")
	cmd.Flags().String("token", os.Getenv("PORTAL_TOKEN"), "Backend bearer token")
	cmd.Flags().String("config", "", "Path to config.yml")
	return cmd
}

// readMedicines accepts either a bare array or the backend's {"medicines": [...]} body.
func readMedicines(path string) ([]model.Medicine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []model.Medicine
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var body struct {
		Medicines []model.Medicine `json:"medicines"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return body.Medicines, nil
}

func fetchMedicines(ctx context.Context, configPath, token string) ([]model.Medicine, error) {
	if token == "" {
		return nil, fmt.Errorf("--token (or PORTAL_TOKEN) is required without --file")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(backend.Config{BaseURL: cfg.Backend.URL, Timeout: cfg.Backend.Timeout})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	return client.ListMedicines(ctx, backend.Session{Token: token})
}

func printInventory(out io.Writer, list []model.Medicine) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGENERIC\tCATEGORY\tSTOCK\tREORDER\tPRICE\t")
	for _, m := range list {
		flag := ""
		if pharmacy.IsLowStock(m) {
			flag = "LOW"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
			m.Name, m.GenericName, m.Category, m.StockQuantity, m.ReorderLevel, m.Price, flag)
	}
	return w.Flush()
}

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Encode and decode prescription QR codes",
	}

	encode := &cobra.Command{
		Use:   "encode <prescriptionId>",
		Short: "Write the QR PNG for a prescription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			size, _ := cmd.Flags().GetInt("size")

			png, err := qr.Encode(args[0], size)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(png)
				return err
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", output, len(png))
			return nil
		},
	}
	encode.Flags().StringP("output", "o", "", "Output file, - for stdout")
	encode.Flags().Int("size", qr.DefaultSize, "Image size in pixels")
	cmd.AddCommand(encode)

	cmd.AddCommand(&cobra.Command{
		Use:   "decode <image>",
		Short: "Print the prescription id in a QR image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			text, err := qr.Decode(f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), qr.ParsePayload(text))
			return nil
		},
	})
	return cmd
}

func stockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Stock helpers",
	}

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Show the stock level an adjustment would leave",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, _ := cmd.Flags().GetInt("current")
			quantity, _ := cmd.Flags().GetInt("quantity")
			operation, _ := cmd.Flags().GetString("operation")

			next, err := pharmacy.PreviewStock(current, quantity, model.StockOperation(operation))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.Itoa(next))
			return nil
		},
	}
	preview.Flags().Int("current", 0, "Current stock")
	preview.Flags().Int("quantity", 0, "Quantity to add or subtract")
	preview.Flags().String("operation", string(model.StockAdd), "add or subtract")
	cmd.AddCommand(preview)
	return cmd
}
