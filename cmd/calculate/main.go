package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"agro-trader/internal/config"
	"agro-trader/internal/models"
	"agro-trader/internal/services"
)

// Prices a single truck load without touching the database or any upstream
func main() {
	commodity := flag.String("commodity", "", "Commodity, selects the crop profile")
	distance := flag.Float64("distance", 0, "Road distance in km")
	buy := flag.Float64("buy", 0, "Buy price per quintal")
	sell := flag.Float64("sell", 0, "Sell price per quintal")
	freight := flag.Float64("freight", 0, "Truck rate per km, 0 keeps the default")
	tax := flag.Float64("tax", 0, "Mandi tax in percent, 0 keeps the default")
	labor := flag.Float64("labor", 0, "Labor per quintal, 0 keeps the crop profile")
	flag.Parse()

	if *commodity == "" || *buy <= 0 || *sell <= 0 || *distance < 0 {
		fmt.Fprintln(os.Stderr, "-commodity, -buy and -sell are required")
		flag.Usage()
		os.Exit(2)
	}

	defaults := services.DefaultCostDefaults()
	if cfg, err := config.LoadConfig(); err == nil {
		defaults = services.CostDefaults{FreightRate: cfg.Costs.FreightRate, TaxRate: cfg.Costs.TaxRate}
	}

	var overrides models.CostOverrides
	if *freight > 0 {
		overrides.FreightRate = freight
	}
	if *tax > 0 {
		rate := *tax / 100
		overrides.TaxRate = &rate
	}
	if *labor > 0 {
		overrides.LaborRate = labor
	}

	calc := services.NewProfitCalculator(services.DefaultCropRegistry(), defaults)
	profile := calc.Profile(*commodity)
	b := calc.Compute(*commodity, *distance, *buy, *sell, overrides)

	fmt.Println(strings.Repeat("=", 48))
	fmt.Printf("%s, %.1f km, %s -> %s per qtl\n", *commodity, *distance, models.RoundCurrency(*buy), models.RoundCurrency(*sell))
	fmt.Printf("Profile %q: wastage %.0f%%, labor %s/qtl\n", profile.Commodity, profile.Wastage*100, models.RoundCurrency(profile.Labor))
	fmt.Println(strings.Repeat("=", 48))
	fmt.Printf("Gross margin:   %12s\n", models.RoundCurrency(b.GrossProfit))
	fmt.Printf("Freight:        %12s\n", models.RoundCurrency(b.Freight))
	fmt.Printf("Spoilage loss:  %12s\n", models.RoundCurrency(b.WastageLoss))
	fmt.Printf("Fees and labor: %12s\n", models.RoundCurrency(b.FeesAndLabor))
	fmt.Printf("Net profit:     %12s\n", models.RoundCurrency(b.NetProfit))
}
