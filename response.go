package httpclient

import "github.com/domsolutions/httpclient/internal/model"

// Response is produced by executing a Call's interceptor chain. Body is
// consumable at most once; Close is idempotent.
type Response = model.Response

// BodyReader adapts a push-style stream reader into an io.ReadCloser.
type BodyReader = model.BodyReader
