package server

//go:generate swag init -g internal/server/swagger.go -o docs/swagger

// @title darkscan API
// @version 0.1
// @description Sessions, scans, monitoring events, history and settings of the darkscan dark-pattern detector.
// @contact.name darkscan Maintainers
// @contact.url https://github.com/raysh454/darkscan
// @BasePath /
