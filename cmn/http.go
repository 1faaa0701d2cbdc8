package cmn

// HTTP header names used across the auth pipeline and blob/channel
// routes.
const (
	HeaderAuthorization = "Authorization"
	HeaderChannelToken  = "X-Channel-Token"
	HeaderLogToken      = "X-Log-Token" // legacy alias
	HeaderRange         = "Range"
	HeaderContentRange  = "Content-Range"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderCacheControl  = "Cache-Control"
	HeaderETag          = "ETag"
	HeaderAcceptRanges  = "Accept-Ranges"

	AuthSchemeAPIKey = "ApiKey"
)

// Route path fragments, kept as plain strings since the gateway's
// router matches on fixed prefixes rather than a generic word-list muxer.
const (
	RoutePrincipal = "/principal/"
	RouteKV        = "/kv/"
	RouteBlob      = "/blob/"
	RouteChannel   = "/channel/"
	RoutePing      = "/ping"
	RouteAdmin     = "/admin/"
)
