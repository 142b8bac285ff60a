package driver

import (
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
)

func postgresBuildDSN(config Config) string {
	host := config.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := config.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(config.User, config.Password),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + config.DbName,
	}
	return u.String()
}
