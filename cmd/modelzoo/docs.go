package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
// `swag init -g cmd/modelzoo/docs.go -o internal/httpapi/docs`.
//
// @title           modelzoo API
// @version         1.0
// @description     HTTP API for fetching, verifying and serving pretrained image models.
//
// @contact.name   modelzoo maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
