package driver

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
)

func mysqlBuildDSN(config Config) string {
	c := mysql.NewConfig()
	c.User = config.User
	c.Passwd = config.Password
	if config.Socket != "" {
		c.Net = "unix"
		c.Addr = config.Socket
	} else {
		c.Net = "tcp"
		c.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	}
	c.DBName = config.DbName
	return c.FormatDSN()
}
