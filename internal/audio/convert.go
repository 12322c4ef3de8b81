package audio

// convert maps interleaved pcm from (channels, rate) onto the device
// format (devChannels, devRate).
//
// Channel mapping averages down to mono or duplicates mono up; other
// layouts keep the first devChannels channels. Rate conversion is linear
// interpolation within the block.
func convert(pcm []int16, channels, rate, devChannels, devRate int) []int16 {
	if channels == devChannels && rate == devRate {
		return pcm
	}

	frames := len(pcm) / channels
	mapped := remapChannels(pcm, channels, devChannels, frames)
	if rate == devRate || frames == 0 {
		return mapped
	}

	outFrames := int(int64(frames) * int64(devRate) / int64(rate))
	out := make([]int16, outFrames*devChannels)
	step := float64(rate) / float64(devRate)
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * step
		i := int(pos)
		frac := pos - float64(i)
		next := i + 1
		if next >= frames {
			next = frames - 1
		}
		for c := 0; c < devChannels; c++ {
			a := float64(mapped[i*devChannels+c])
			b := float64(mapped[next*devChannels+c])
			out[f*devChannels+c] = int16(a + (b-a)*frac)
		}
	}
	return out
}

func remapChannels(pcm []int16, channels, devChannels, frames int) []int16 {
	if channels == devChannels {
		return pcm
	}
	out := make([]int16, frames*devChannels)
	for f := 0; f < frames; f++ {
		src := pcm[f*channels : (f+1)*channels]
		switch {
		case devChannels == 1:
			sum := 0
			for _, s := range src {
				sum += int(s)
			}
			out[f] = int16(sum / channels)
		case channels == 1:
			for c := 0; c < devChannels; c++ {
				out[f*devChannels+c] = src[0]
			}
		default:
			for c := 0; c < devChannels; c++ {
				if c < channels {
					out[f*devChannels+c] = src[c]
				}
			}
		}
	}
	return out
}
