package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"xqmahjong/app"
	"xqmahjong/common/config"
	"xqmahjong/common/log"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "xqmahjong",
	Short: "象棋麻将对战服务",
	Long:  `象棋麻将对战服务`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Load(configFile, func(c *config.Configuration) {
			log.SetLevel(c.LogConf.Level)
			log.Info("配置热更新完成")
		}); err != nil {
			log.Fatal("文件配置发生错误：%v", err)
		}
		log.InitLog(config.Conf.AppName, config.Conf.LogConf.Level)
		log.Info("配置文件: %+v", *config.Conf)

		if err := app.Run(context.Background()); err != nil {
			log.Error("发生异常: %v", err)
			os.Exit(-1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "resource/application.yml", "配置文件路径")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("error happen: %#v", err)
		os.Exit(1)
	}
}
