package handlers

import "net/http"

// openAPISpec describes the read API for the interactive documentation page.
const openAPISpec = `{
  "openapi": "3.0.3",
  "info": {
    "title": "Precipitation API",
    "description": "Read API serving station metadata and daily precipitation sums scraped from the CHMU hydrology portal.",
    "version": "1.0.0"
  },
  "paths": {
    "/api/stations": {
      "get": {
        "summary": "List measuring stations",
        "responses": {
          "200": {
            "description": "All stations with coordinates and elevation",
            "content": {
              "application/json": {
                "schema": {
                  "type": "array",
                  "items": {"$ref": "#/components/schemas/Station"}
                }
              }
            }
          }
        }
      }
    },
    "/api/precipitation/daily": {
      "get": {
        "summary": "Daily precipitation sums",
        "parameters": [
          {
            "name": "station",
            "in": "query",
            "description": "Exact station name",
            "schema": {"type": "string"}
          },
          {
            "name": "start_date",
            "in": "query",
            "description": "First date to include (YYYY-MM-DD)",
            "schema": {"type": "string", "format": "date"}
          },
          {
            "name": "end_date",
            "in": "query",
            "description": "Last date to include (YYYY-MM-DD)",
            "schema": {"type": "string", "format": "date"}
          }
        ],
        "responses": {
          "200": {
            "description": "Daily sums matching the filter",
            "content": {
              "application/json": {
                "schema": {
                  "type": "array",
                  "items": {"$ref": "#/components/schemas/DailyPrecipitation"}
                }
              }
            }
          },
          "400": {"description": "Invalid filter parameter"}
        }
      }
    },
    "/health": {
      "get": {
        "summary": "Service health",
        "responses": {
          "200": {"description": "Service and database are healthy"},
          "503": {"description": "Database is unreachable"}
        }
      }
    }
  },
  "components": {
    "schemas": {
      "Station": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "elevation": {"type": "integer"},
          "lat": {"type": "number"},
          "lon": {"type": "number"},
          "id_chmu": {"type": "string"},
          "type": {"type": "string"}
        }
      },
      "DailyPrecipitation": {
        "type": "object",
        "properties": {
          "station": {"type": "string"},
          "date": {"type": "string", "format": "date-time"},
          "amount": {"type": "number"}
        }
      }
    }
  }
}`

// swaggerUIPage embeds the Swagger UI served from a CDN, pointed at the
// service's own OpenAPI document.
const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Precipitation API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = () => {
      SwaggerUIBundle({
        url: "/openapi.json",
        dom_id: "#swagger-ui"
      });
    };
  </script>
</body>
</html>`

// OpenAPISpec handles GET /openapi.json.
func (h *PrecipHandlers) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(openAPISpec))
}

// SwaggerUI handles GET /docs.
func (h *PrecipHandlers) SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(swaggerUIPage))
}
