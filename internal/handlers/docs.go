package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description, typ string, required bool) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      map[string]string{"type": typ},
	}
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func number() map[string]string {
	return map[string]string{"type": "number"}
}

func str() map[string]string {
	return map[string]string{"type": "string"}
}

var errorResponses = map[string]interface{}{
	"400": jsonResponse("Invalid parameters", ref("Error")),
}

func withErrors(ok map[string]interface{}, extra map[string]string) map[string]interface{} {
	responses := map[string]interface{}{"200": ok}
	for code, resp := range errorResponses {
		responses[code] = resp
	}
	for code, desc := range extra {
		responses[code] = jsonResponse(desc, ref("Error"))
	}
	return responses
}

var overrideParams = []map[string]interface{}{
	queryParam("freight", "Truck rate per km; 0 or absent uses the default (35)", "number", false),
	queryParam("tax", "Mandi tax in percent; 0 or absent uses the default (3)", "number", false),
	queryParam("labor", "Labor per quintal; 0 or absent uses the crop profile", "number", false),
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Agro Trader API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	breakdown := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"net_profit":     number(),
			"gross_profit":   number(),
			"wastage_loss":   number(),
			"fees_and_labor": number(),
			"freight":        number(),
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Agro Trader API",
			"description": "Mandi price arbitrage: trusted prices, cached geocoding and road distances, and per-truck profit breakdowns",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   str(),
						"message": str(),
						"code":    map[string]string{"type": "integer"},
					},
				},
				"ProfitBreakdown": breakdown,
				"MarketPrice": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"state":        str(),
						"market":       str(),
						"commodity":    str(),
						"modal_price":  number(),
						"arrival_date": map[string]string{"type": "string", "format": "date-time"},
					},
				},
				"Opportunity": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"market":      str(),
						"state":       str(),
						"distance_km": number(),
						"buy_price":   number(),
						"sell_price":  number(),
						"financials":  ref("ProfitBreakdown"),
					},
				},
				"RegionalDeal": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"base_city":     str(),
						"target_market": str(),
						"crop":          str(),
						"buy_price":     number(),
						"sell_price":    number(),
						"distance_km":   number(),
						"financials":    ref("ProfitBreakdown"),
					},
				},
				"VolatilityAlert": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"state":        str(),
						"commodity":    str(),
						"min_price":    number(),
						"max_price":    number(),
						"price_gap":    number(),
						"arrival_date": map[string]string{"type": "string", "format": "date-time"},
					},
				},
			},
		},
		"paths": map[string]interface{}{
			"/api/opportunities": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Find profitable routes",
					"description": "Buys at the base city's local mandi and prices a 100 quintal truck to every trusted market within reach, sorted by net profit",
					"parameters": append([]map[string]interface{}{
						queryParam("base", "Base city, matched against market names", "string", true),
						queryParam("commodity", "Commodity substring, case-insensitive", "string", true),
						queryParam("min_profit", "Minimum net profit (default 5000)", "number", false),
						queryParam("max_distance", "Maximum road distance in km (default 400)", "number", false),
					}, overrideParams...),
					"responses": withErrors(jsonResponse("Ranked opportunities", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"base_city":     str(),
							"commodity":     str(),
							"local_market":  ref("MarketPrice"),
							"opportunities": map[string]interface{}{"type": "array", "items": ref("Opportunity")},
							"markets":       map[string]interface{}{"type": "array", "items": ref("MarketPrice")},
							"skipped":       map[string]string{"type": "integer"},
						},
					}), map[string]string{
						"404": "No trusted price data for the commodity",
						"422": "Base city could not be located",
					}),
				},
			},
			"/api/markets": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Trusted prices",
					"parameters": []map[string]interface{}{queryParam("commodity", "Commodity substring", "string", true)},
					"responses": withErrors(jsonResponse("One row per market, most recent", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"data":  map[string]interface{}{"type": "array", "items": ref("MarketPrice")},
							"total": map[string]string{"type": "integer"},
						},
					}), nil),
				},
			},
			"/api/locations/{name}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Resolve a market location",
					"parameters": []map[string]interface{}{{
						"name": "name", "in": "path", "required": true, "schema": str(),
					}},
					"responses": withErrors(jsonResponse("Coordinate", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"name": str(), "key": str(), "lat": number(), "lon": number(),
						},
					}), map[string]string{"404": "Location not found"}),
				},
			},
			"/api/routes": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Road distance between two markets",
					"parameters": []map[string]interface{}{
						queryParam("from", "Origin market", "string", true),
						queryParam("to", "Destination market", "string", true),
					},
					"responses": withErrors(jsonResponse("Distance", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"from": str(), "to": str(), "distance_km": number(),
						},
					}), map[string]string{"404": "Location or route not found"}),
				},
			},
			"/api/profit": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Price one truck load",
					"parameters": append([]map[string]interface{}{
						queryParam("commodity", "Commodity, selects the crop profile", "string", true),
						queryParam("distance", "Road distance in km", "number", true),
						queryParam("buy", "Buy price per quintal", "number", true),
						queryParam("sell", "Sell price per quintal", "number", true),
					}, overrideParams...),
					"responses": withErrors(jsonResponse("Breakdown", map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"commodity":  str(),
							"financials": ref("ProfitBreakdown"),
						},
					}), nil),
				},
			},
			"/api/volatility": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Widest same-day price spread",
					"parameters": []map[string]interface{}{queryParam("refresh", "true to rescan instead of serving the last scheduled scan", "boolean", false)},
					"responses": map[string]interface{}{
						"200": jsonResponse("Alert", ref("VolatilityAlert")),
						"204": map[string]string{"description": "No spread above the threshold"},
					},
				},
			},
			"/api/regional-best": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Best single route across hubs and crops",
					"parameters": []map[string]interface{}{
						queryParam("hubs", "Comma-separated base cities", "string", true),
						queryParam("crops", "Comma-separated commodities", "string", true),
						queryParam("floor", "Net profit to beat (default 3000)", "number", false),
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Deal", ref("RegionalDeal")),
						"204": map[string]string{"description": "Nothing beats the floor"},
						"400": jsonResponse("Invalid parameters", ref("Error")),
					},
				},
			},
			"/api/regions": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Last scheduled regional scan",
					"responses": map[string]interface{}{
						"200": jsonResponse("Deal per configured region", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"regions":    map[string]interface{}{"type": "object", "additionalProperties": ref("RegionalDeal")},
								"updated_at": map[string]string{"type": "string", "format": "date-time"},
							},
						}),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Checks that the price store is reachable",
					"responses": map[string]interface{}{
						"200": jsonResponse("API is healthy", map[string]interface{}{
							"type":       "object",
							"properties": map[string]interface{}{"status": str()},
						}),
						"503": map[string]string{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": str(),
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
