package utils

import "log"

// Drains c until it is closed. Used to release producers that are still sending
func ConsumeChannel[T any](c <-chan T) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		log.Println("ERROR|CONSUMING|CHANNEL", err)
	}()
	for range c {
	}
}
