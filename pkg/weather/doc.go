// Package weather maps the day's aggregate completion rate to the five-tier
// rainbow/sunny/partly-cloudy/cloudy/stormy condition.
package weather
