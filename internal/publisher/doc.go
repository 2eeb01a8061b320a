// Package publisher replays dataset rows onto the message bus.
//
// Each tick reads the next row from a dataset.Source and fans it out into
// one message per registered sensor: the sensor's field value, its unit,
// and a timestamp. Messages go to the transport's fire-and-forget publish,
// so a slow or failing broker never stalls the tick. When the last row has
// been published the cursor wraps to the first and replay continues.
//
// A sensor whose field is missing from a row is skipped for that tick only;
// the remaining sensors still publish.
//
// Usage:
//
//	pub, err := publisher.New(registry, source, mqttClient, publisher.Options{
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	go pub.Run(ctx, time.Second)
package publisher
