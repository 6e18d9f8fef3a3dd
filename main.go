package main

import (
	"log"
	"os"
	"time"

	"bitbucket.org/routeland/payments/api"
	"bitbucket.org/routeland/payments/server"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

func main() {
	_ = godotenv.Load("dev.env")

	app := cli.NewApp()
	app.Name = "Payments Service"
	app.Version = "1.00"
	app.Compiled = time.Now()
	app.Copyright = "(c) Routeland CORP"
	app.Commands = []cli.Command{
		{
			Name:  "backend-up",
			Usage: "This command starts the payments service",
			Action: func(c *cli.Context) error {
				StartServer(api.GetRoutes())
				return nil
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func StartServer(routes []*server.Route) {
	ctx := server.GetAppContext()
	ctx.CreateMySQLConnection()
	ctx.CreateSMTPConnection()
	ctx.CreateMercadoPagoIntegration()
	ctx.CreateReconciler()

	server.UpServer(routes, ctx)
}
