package driver

import (
	"fmt"
	"net/url"

	_ "github.com/denisenkom/go-mssqldb"
)

func mssqlBuildDSN(config Config) string {
	query := url.Values{}
	query.Add("database", config.DbName)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(config.User, config.Password),
		Host:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
