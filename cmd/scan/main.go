package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"agro-trader/internal/app"
	"agro-trader/internal/config"
	"agro-trader/internal/models"
	"agro-trader/internal/services"
	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

func main() {
	base := flag.String("base", "", "Base city to buy in")
	commodity := flag.String("commodity", "", "Commodity to trade")
	minProfit := flag.Float64("min-profit", -1, "Minimum net profit per truck (default from config)")
	maxDistance := flag.Float64("max-distance", 0, "Maximum road distance in km (default from config)")
	freight := flag.Float64("freight", 0, "Truck rate per km, 0 keeps the default")
	tax := flag.Float64("tax", 0, "Mandi tax in percent, 0 keeps the default")
	labor := flag.Float64("labor", 0, "Labor per quintal, 0 keeps the crop profile")
	regions := flag.Bool("regions", false, "Scan every configured region instead of one base city")
	volatility := flag.Bool("volatility", false, "Report the widest same-day price spread")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Logging, "agro-scan")
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, metrics.NewCollector("agro_scan", prometheus.NewRegistry()))
	if err != nil {
		logger.Fatal(ctx, "[SCAN_ERROR] Failed to initialise services", logging.Fields{}, err)
	}
	defer a.Close()

	switch {
	case *volatility:
		printVolatility(a.Volatility.Scan(ctx))
	case *regions:
		for _, r := range cfg.Market.Regions {
			fmt.Printf("%s: ", strings.ToUpper(r.Name))
			printDeal(a.Opportunity.BestRegionalRoute(ctx, r.Hubs, r.Crops, cfg.Market.RegionalFloor))
		}
	default:
		if *base == "" || *commodity == "" {
			fmt.Fprintln(os.Stderr, "-base and -commodity are required")
			flag.Usage()
			os.Exit(2)
		}

		q := services.OpportunityQuery{
			BaseCity:      *base,
			Commodity:     *commodity,
			MinProfit:     cfg.Market.MinProfit,
			MaxDistanceKm: *maxDistance,
			Overrides:     overrides(*freight, *tax, *labor),
		}
		if *minProfit >= 0 {
			q.MinProfit = *minProfit
		}

		result, err := a.Opportunity.FindOpportunities(ctx, q)
		switch {
		case errors.Is(err, services.ErrNoMarketData):
			fmt.Printf("No reliable data found for %s\n", *commodity)
			os.Exit(1)
		case errors.Is(err, services.ErrBaseNotMapped):
			fmt.Printf("Could not map %s\n", *base)
			os.Exit(1)
		case err != nil:
			fmt.Fprintf(os.Stderr, "Search interrupted, showing partial results: %v\n", err)
		}
		printResult(result)
	}
}

// overrides mirrors the API: zero keeps the default and tax is a percent
func overrides(freight, tax, labor float64) models.CostOverrides {
	var out models.CostOverrides
	if freight > 0 {
		out.FreightRate = &freight
	}
	if tax > 0 {
		rate := tax / 100
		out.TaxRate = &rate
	}
	if labor > 0 {
		out.LaborRate = &labor
	}
	return out
}

func printResult(result *services.OpportunityResult) {
	if result == nil {
		return
	}
	if result.LocalMarket == nil {
		fmt.Printf("No local %s price in %s. Regional prices:\n", result.Commodity, result.BaseCity)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MARKET\tSTATE\tMODAL PRICE\tDATE")
		for _, m := range result.Markets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Market, m.State, models.RoundCurrency(m.ModalPrice), m.ArrivalDate.Format("2006-01-02"))
		}
		w.Flush()
		return
	}

	fmt.Printf("Buying in %s at %s/qtl\n", result.LocalMarket.Market, models.RoundCurrency(result.LocalMarket.ModalPrice))
	if len(result.Opportunities) == 0 {
		fmt.Println("No profitable routes found")
		return
	}

	fmt.Printf("Found %d profitable routes (%d markets skipped)\n", len(result.Opportunities), result.Skipped)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "MARKET\tKM\tBUY\tSELL\tGROSS\tFREIGHT\tSPOILAGE\tFEES+LABOR\tNET\t")
	for _, o := range result.Opportunities {
		s := o.Summary()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Market, s.DistanceKm, s.BuyPrice, s.SellPrice, s.GrossMargin,
			s.Freight, s.SpoilageLoss, s.FeesAndLabor, s.NetProfit)
	}
	w.Flush()
}

func printDeal(deal *models.RegionalDeal) {
	if deal == nil {
		fmt.Println("no route above the floor")
		return
	}
	fmt.Printf("buy %s in %s at %s, sell in %s at %s (%.1f km), net %s\n",
		deal.Crop, deal.BaseCity, models.RoundCurrency(deal.BuyPrice),
		deal.TargetMarket, models.RoundCurrency(deal.SellPrice), deal.DistanceKm,
		models.RoundCurrency(deal.Financials.NetProfit))
}

func printVolatility(alert *models.VolatilityAlert) {
	if alert == nil {
		fmt.Println("No price spread above the threshold")
		return
	}
	fmt.Printf("%s %s on %s: %s to %s, gap %s\n",
		alert.State, alert.Commodity, alert.ArrivalDate.Format("2006-01-02"),
		models.RoundCurrency(alert.MinPrice), models.RoundCurrency(alert.MaxPrice),
		models.RoundCurrency(alert.PriceGap))
}
