/*
Package httpapi is LocalZure's REST facade: the thin HTTP layer that
decodes requests, calls into pkg/keyvault and pkg/oauth, and maps
results back onto the wire.

# Architecture

	┌────────────── CLIENT (Azure SDK / curl) ─────────────┐
	│                                                         │
	└─────────────────────┬─────────────────────────────────┘
	                      │ HTTP
	┌─────────────────────▼─────────────────────────────────┐
	│                httpapi.Server                          │
	│  http.ServeMux (Go 1.22+ method + wildcard patterns)    │
	│  - decode request                                       │
	│  - call keyvault.Engine / oauth.Issuer                  │
	│  - map typed error -> {"error":{code,message}} + status │
	│  - record per-route request count + latency             │
	└──────┬──────────────────────────────┬──────────────────┘
	       │                              │
	┌──────▼──────┐               ┌───────▼────────┐
	│ pkg/keyvault │               │   pkg/oauth    │
	└─────────────┘               └────────────────┘

# Routes

Secrets: PUT/GET/PATCH/DELETE on /{vault}/secrets/{name}[/{version}],
GET /{vault}/secrets, GET /{vault}/secrets/{name}/versions.

Deleted secrets: GET/DELETE /{vault}/deletedsecrets/{name}, GET
/{vault}/deletedsecrets, POST /{vault}/deletedsecrets/{name}/recover.

OAuth: POST /.localzure/oauth/token (form-encoded client_credentials),
GET /.localzure/oauth/keys (JWKS), GET /.well-known/openid-configuration.

Operational: GET /health, GET /ready, GET /metrics.

Every route accepts (and ignores) an api-version query parameter —
net/http's mux never inspects the query string, so no special handling
is needed beyond not rejecting it.

# Error Mapping

writeError type-switches via errors.As against *keyvault.Error and
*oauth.Error and maps their Code field to a status code:
BadParameter/invalid_grant-family -> 400, invalid_client -> 401,
SecretDisabled/Forbidden -> 403, SecretNotFound/VaultNotFound -> 404,
Conflict -> 409, purge success -> 204, any other code -> 500. An
error of neither type (for example a state backend failure during
write-through) is returned as a 500 with code "InternalError".

# Design Patterns

No business logic in handlers: validation and state transitions live
in pkg/keyvault and pkg/oauth. A handler's job is request decode,
single engine call, response encode.

Per-route metrics: routeLabel collapses a concrete path
("/my-vault/secrets/db-password") to its template
("/{vault}/secrets/{name}") before it becomes a Prometheus label, so
cardinality stays bounded regardless of how many distinct vault or
secret names are ever used.

# See Also

  - pkg/keyvault for the secret engine this facade fronts
  - pkg/oauth for the token issuer/JWKS this facade fronts
  - pkg/metrics for the counters and histograms this facade updates
*/
package httpapi
